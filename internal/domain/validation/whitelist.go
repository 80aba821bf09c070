package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
)

// identifierPattern finds field-like names: lowerCamelCase and snake_case.
var identifierPattern = regexp.MustCompile(`\b(?:[a-z][a-z0-9]*(?:[A-Z][a-z0-9]*)+|[A-Za-z][A-Za-z0-9]*(?:_[A-Za-z0-9]+)+)\b`)

// forbiddenPhrases are plain-language names of forbidden sources.
var forbiddenPhrases = regexp.MustCompile(`(?i)\b(?:raw\s+(?:sales|gp|upload|data)|uploaded\s+(?:sales|numbers|data)|csv\s+(?:sales|export|data)|estimated\s+(?:sales|gp|gross\s+profit)|projected\s+(?:sales|gp)|calculated\s+(?:sales|gp)|test\s+(?:data|fixture))\b`)

// checkWhitelist flags field references in the answer that name a forbidden
// source or look like an unapproved performance metric. extra are additional
// names to check, e.g. keys of a constrained reply.
func checkWhitelist(text string, extra []string) []Mismatch {
	var (
		out  []Mismatch
		seen = make(map[string]bool)
	)
	add := func(name string, offset int) {
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		switch {
		case metrics.IsApproved(name):
			return
		case metrics.IsForbidden(name):
			seen[key] = true
			out = append(out, Mismatch{
				Field:    name,
				Type:     TypeForbiddenField,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%q comes from a forbidden data source", name),
				Offset:   offset,
			})
		case metrics.LooksLikeMetric(name):
			seen[key] = true
			out = append(out, Mismatch{
				Field:    name,
				Type:     TypeUnapprovedField,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("%q is not an approved performance field", name),
				Offset:   offset,
			})
		}
	}

	for _, name := range extra {
		add(name, -1)
	}
	for _, loc := range identifierPattern.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], loc[0])
	}
	for _, loc := range forbiddenPhrases.FindAllStringIndex(text, -1) {
		phrase := strings.Join(strings.Fields(text[loc[0]:loc[1]]), "_")
		key := strings.ToLower(phrase)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Mismatch{
			Field:    phrase,
			Type:     TypeForbiddenField,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("answer cites %q, which is not an official figure", text[loc[0]:loc[1]]),
			Offset:   loc[0],
		})
	}
	return out
}
