package answer

import (
	"strings"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
)

// Audience selects the instruction block.
type Audience string

const (
	AudienceAdvisorSelf Audience = "advisor_self"
	AudienceAdvisor     Audience = "advisor"
	AudienceManager     Audience = "manager"
	AudienceAdmin       Audience = "admin"
)

const baseRules = `Rules:
- Every number you state must be copied exactly from the DATA section. Do not round, estimate, project or derive new figures.
- If a figure is listed as unavailable or is not in the DATA section, say it is unavailable. Never guess.
- Refer to metrics by their labels as written in the DATA section.
- Do not mention raw uploads, exports, spreadsheets or test data.`

var audienceIntro = map[Audience]string{
	AudienceAdvisorSelf: "You are a performance coach talking to a service advisor about their own results. Speak to them directly as \"you\", be encouraging and concrete, and point to one or two things they can improve.",
	AudienceAdvisor:     "You are a performance assistant answering a service advisor's question about a colleague. Keep the answer factual and brief and do not compare the colleague unfavourably.",
	AudienceManager:     "You are a performance analyst helping a store or market manager. Be direct, lead with the headline figures and call out anything that needs attention.",
	AudienceAdmin:       "You are a performance analyst answering an administrator. Be precise and complete, and state the data source when asked.",
}

const noDataRules = `No performance data is attached to this question. Do not state any sales, profit, count or other performance figures; if the user asks for them, tell them to ask about a specific advisor, store or market.`

// constrainedRules are the JSON-only scorecard instructions.
func constrainedRules() string {
	keys := make([]string, len(metrics.ScorecardFields))
	for i, f := range metrics.ScorecardFields {
		keys[i] = `"` + string(f) + `"`
	}
	return `Respond with exactly one JSON object and nothing else.
The object must have exactly these keys: ` + strings.Join(keys, ", ") + `.
Each value is a plain JSON number copied from the DATA section.
No prose, no markdown, no code fences, no currency symbols, no percent signs, no thousands separators.`
}

// intro returns the configured override for a, or the built-in text.
func intro(a Audience, overrides map[string]string) string {
	if s := strings.TrimSpace(overrides[string(a)]); s != "" {
		return s
	}
	return audienceIntro[a]
}
