package validation

import (
	"regexp"
	"strings"
)

var performanceKeywords = regexp.MustCompile(`(?i)\b(?:sales|sold|sell|revenue|invoices?|tickets?|gp|gross\s+profit|profit|margin|tires?|alignments?|oil\s+changes?|brakes?|batter(?:y|ies)|wipers?|filters?|kpis?|scorecards?|numbers|performance|stats|metrics|attach\s+rates?|average\s+repair\s+order|aro|goals?|how\s+many|how\s+much)\b`)

// IsPerformanceQuery reports whether the query asks about performance figures.
// extra adds operator-configured keywords.
func IsPerformanceQuery(query string, extra []string) bool {
	if performanceKeywords.MatchString(query) {
		return true
	}
	lower := strings.ToLower(query)
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var scorecardPattern = regexp.MustCompile(`(?i)\b(?:score\s*cards?|kpi\s+(?:summary|card)|full\s+numbers)\b`)

// IsScorecardQuery reports whether the query wants the fixed scorecard, which
// is answered through the constrained JSON form.
func IsScorecardQuery(query string) bool {
	return scorecardPattern.MatchString(query)
}
