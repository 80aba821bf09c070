package validation

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/rotisserie/eris"
)

// Scorecard is a strictly parsed constrained reply.
type Scorecard struct {
	Claims []Claim
	// Extra holds keys outside the fixed scorecard set, sorted.
	Extra []string
}

// ParseScorecard parses a constrained JSON reply. Anything other than a single
// JSON object carrying every scorecard key with a numeric value fails with
// ErrMalformedModelOutput. Fences and prose are not stripped.
func ParseScorecard(text string) (*Scorecard, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, eris.Wrapf(ErrMalformedModelOutput, "validation: decode scorecard: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, eris.Wrap(ErrMalformedModelOutput, "validation: trailing data after scorecard")
	}
	if obj == nil {
		return nil, eris.Wrap(ErrMalformedModelOutput, "validation: scorecard is null")
	}

	sc := &Scorecard{}
	for _, f := range metrics.ScorecardFields {
		raw, ok := obj[string(f)]
		if !ok {
			return nil, eris.Wrapf(ErrMalformedModelOutput, "validation: scorecard missing %q", f)
		}
		num, ok := raw.(json.Number)
		if !ok {
			return nil, eris.Wrapf(ErrMalformedModelOutput, "validation: scorecard %q is %T, want number", f, raw)
		}
		v, err := num.Float64()
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedModelOutput, "validation: scorecard %q: %v", f, err)
		}
		sc.Claims = append(sc.Claims, Claim{Field: f, Value: v, Raw: num.String()})
	}

	for k := range obj {
		if !isScorecardKey(k) {
			sc.Extra = append(sc.Extra, k)
		}
	}
	sort.Strings(sc.Extra)
	return sc, nil
}

// Render turns the scorecard into plain "Label: value" lines and records each
// claim's offset in the rendered text.
func (sc *Scorecard) Render() string {
	var b strings.Builder
	for i := range sc.Claims {
		c := &sc.Claims[i]
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(metrics.Label(c.Field))
		b.WriteString(": ")
		c.Start = b.Len()
		b.WriteString(c.Raw)
		c.End = b.Len()
	}
	return b.String()
}

func isScorecardKey(k string) bool {
	for _, f := range metrics.ScorecardFields {
		if string(f) == k {
			return true
		}
	}
	return false
}
