package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
)

// Correction is the user-visible outcome of Correct.
type Correction struct {
	Text string          `json:"text"`
	Mode EnforcementMode `json:"mode"`
	// Substituted counts high-severity values replaced in the text.
	Substituted int `json:"substituted"`
	// AdminOverride is set when a failed result was let through unchanged.
	AdminOverride bool `json:"adminOverride"`
}

// Corrector rewrites failed answers. The zero value uses the default footer.
type Corrector struct {
	// Footer is a fmt template taking the validation timestamp.
	Footer string
}

func NewCorrector(s settings.Settings) Corrector {
	return Corrector{Footer: s.Disclaimers.Footer}
}

// Correct applies mode to text. Valid results pass through untouched.
func (c Corrector) Correct(text string, res Result, mode EnforcementMode) Correction {
	out := Correction{Text: text, Mode: mode}
	if res.IsValid {
		return out
	}

	switch mode {
	case EnforcementBypassed:
		out.AdminOverride = true
		return out
	case EnforcementAdvisory:
		out.Text = c.wrap(text, res)
		return out
	}

	body, n := substitute(text, res.Mismatches)
	out.Substituted = n
	out.Text = c.wrap(body, res)
	return out
}

func (c Corrector) wrap(body string, res Result) string {
	footer := c.Footer
	if footer == "" {
		footer = settings.Defaults().Disclaimers.Footer
	}
	var parts []string
	if res.Disclaimer != "" {
		parts = append(parts, res.Disclaimer)
	}
	parts = append(parts, body, fmt.Sprintf(footer, res.Audit.Timestamp.UTC().Format(time.RFC3339)))
	return strings.Join(parts, "\n\n")
}

type replacement struct {
	start, end int
	with       string
}

// substitute swaps each high-severity literal for "<expected> (corrected
// from <detected>)". The recorded offset is used when it still points at the
// literal; otherwise the first free occurrence on number boundaries is taken.
func substitute(text string, ms []Mismatch) (string, int) {
	var reps []replacement
	taken := func(s, e int) bool {
		for _, r := range reps {
			if s < r.end && r.start < e {
				return true
			}
		}
		return false
	}

	for _, m := range ms {
		if m.Severity != SeverityHigh || m.Type != TypeValueMismatch || m.Raw == "" {
			continue
		}
		start := -1
		if o := m.Offset; o >= 0 && o+len(m.Raw) <= len(text) && text[o:o+len(m.Raw)] == m.Raw &&
			numberBoundary(text, o, o+len(m.Raw)) && !taken(o, o+len(m.Raw)) {
			start = o
		} else {
			start = findLiteral(text, m.Raw, taken)
		}
		if start < 0 {
			continue
		}
		reps = append(reps, replacement{
			start: start,
			end:   start + len(m.Raw),
			with:  fmt.Sprintf("%s (corrected from %s)", metrics.FormatNumber(m.Expected), metrics.FormatNumber(m.Detected)),
		})
	}
	if len(reps) == 0 {
		return text, 0
	}

	sort.Slice(reps, func(i, j int) bool { return reps[i].start < reps[j].start })
	var b strings.Builder
	last := 0
	for _, r := range reps {
		b.WriteString(text[last:r.start])
		b.WriteString(r.with)
		last = r.end
	}
	b.WriteString(text[last:])
	return b.String(), len(reps)
}

func findLiteral(text, lit string, taken func(s, e int) bool) int {
	from := 0
	for from <= len(text)-len(lit) {
		i := strings.Index(text[from:], lit)
		if i < 0 {
			return -1
		}
		s := from + i
		if numberBoundary(text, s, s+len(lit)) && !taken(s, s+len(lit)) {
			return s
		}
		from = s + 1
	}
	return -1
}
