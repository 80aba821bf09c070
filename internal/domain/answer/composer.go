package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	dataOpen  = "<<<DATA"
	dataClose = "DATA>>>"
)

// Input to Compose.
type Input struct {
	Query string
	Ref   entity.Reference
	// Metrics is nil for questions that are not about performance.
	Metrics *metrics.Metrics
	Role    entity.Role
	// Self is set when the reference is the requesting advisor.
	Self  bool
	Goals *metrics.Metrics
	// Aggregate is peer or parent-unit context. It is never used for an
	// individual advisor.
	Aggregate      *metrics.Metrics
	AggregateLabel string
}

// Prompt is what gets sent to the model.
type Prompt struct {
	System string
	User   string
	// Constrained prompts ask for the JSON scorecard only.
	Constrained bool
	Params      ai.Params
	// Truncated is set when optional context was cut to fit the bound.
	Truncated bool
}

type Composer struct {
	settings settings.Store
}

func NewComposer(store settings.Store) *Composer {
	return &Composer{settings: store}
}

// Compose renders the prompt. Untrusted metrics are refused.
func (c *Composer) Compose(ctx context.Context, in Input) (Prompt, error) {
	if in.Metrics != nil && !in.Metrics.Trusted() {
		return Prompt{}, eris.Wrap(metrics.ErrMetricsUnavailable, "answer: metrics lack a verified provenance stamp")
	}
	s, err := c.settings.Get(ctx)
	if err != nil {
		return Prompt{}, eris.Wrap(err, "answer: load settings")
	}

	p := Prompt{
		Params: ai.Params{
			Temperature: s.Decoding.Temperature,
			TopP:        s.Decoding.TopP,
			TopK:        s.Decoding.TopK,
			MaxTokens:   s.Decoding.MaxTokens,
			Seed:        s.Decoding.Seed,
		},
	}

	var system strings.Builder
	system.WriteString(intro(audienceFor(in), s.RolePrompts))
	system.WriteString("\n\n")

	if in.Metrics == nil {
		system.WriteString(noDataRules)
		p.System = system.String()
		p.User = in.Query
		return p, nil
	}

	system.WriteString(baseRules)
	if validation.IsScorecardQuery(in.Query) && hasScorecard(in.Metrics) {
		p.Constrained = true
		p.Params.Temperature = s.Decoding.ConstrainedTemperature
		p.Params.JSONMode = true
		system.WriteString("\n\n")
		system.WriteString(constrainedRules())
	}
	p.System = system.String()

	doc, truncated := document(in, s)
	p.Truncated = truncated
	p.User = doc + "\n\nQuestion: " + in.Query
	return p, nil
}

func audienceFor(in Input) Audience {
	switch in.Role {
	case entity.RoleAdmin:
		return AudienceAdmin
	case entity.RoleManager:
		return AudienceManager
	}
	if in.Self {
		return AudienceAdvisorSelf
	}
	return AudienceAdvisor
}

func hasScorecard(m *metrics.Metrics) bool {
	for _, f := range metrics.ScorecardFields {
		if _, ok := m.Number(f); !ok {
			return false
		}
	}
	return true
}

// document builds the delimited data section. Entity, provenance and values
// are always written; goals and aggregate context are added only while the
// document stays within MaxContextChars.
func document(in Input, s settings.Settings) (string, bool) {
	m := in.Metrics
	core := []string{
		dataOpen,
		fmt.Sprintf("entity: %s %s (%s)", m.Kind, displayName(in.Ref), m.EntityID),
		fmt.Sprintf("period: %s", in.Ref.Period.Label()),
		fmt.Sprintf("source: %s retrieved %s integrity %s",
			m.Provenance.Endpoint, m.Provenance.RetrievedAt.UTC().Format(time.RFC3339), m.Provenance.Integrity),
	}
	core = append(core, valueLines(m, "")...)
	if len(m.Missing) > 0 {
		names := make([]string, len(m.Missing))
		for i, f := range m.Missing {
			names[i] = metrics.Label(f)
		}
		core = append(core, "unavailable: "+strings.Join(names, ", "))
	}
	if len(m.Advanced) > 0 {
		names := make([]string, len(m.Advanced))
		for i, f := range m.Advanced {
			names[i] = metrics.Label(f)
		}
		core = append(core, "advanced available: "+strings.Join(names, ", "))
	}

	var optional []string
	if s.IncludeGoals && in.Goals.Len() > 0 {
		optional = append(optional, "goals:")
		optional = append(optional, valueLines(in.Goals, "  ")...)
	}
	if in.Aggregate.Len() > 0 {
		if in.Ref.Kind == entity.KindAdvisor || m.Kind == entity.KindAdvisor {
			zap.L().Debug("answer: aggregate context withheld from individual prompt", zap.String("id", m.EntityID))
		} else if in.Aggregate.Trusted() {
			label := in.AggregateLabel
			if label == "" {
				label = string(in.Aggregate.Kind)
			}
			optional = append(optional, fmt.Sprintf("context (%s):", label))
			optional = append(optional, valueLines(in.Aggregate, "  ")...)
		}
	}

	budget := s.MaxContextChars - len(dataClose) - 1
	var (
		b         strings.Builder
		truncated bool
	)
	for _, line := range core {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > budget {
		zap.L().Warn("answer: entity values exceed context bound", zap.Int("max_chars", s.MaxContextChars), zap.Int("chars", b.Len()), zap.String("id", m.EntityID))
	}
	for _, line := range optional {
		if b.Len()+len(line)+1 > budget {
			truncated = true
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if truncated {
		zap.L().Info("answer: context truncated", zap.Int("max_chars", s.MaxContextChars), zap.String("id", m.EntityID))
	}
	b.WriteString(dataClose)
	return b.String(), truncated
}

func valueLines(m *metrics.Metrics, indent string) []string {
	var lines []string
	for _, f := range m.Fields() {
		v, _ := m.Get(f)
		lines = append(lines, fmt.Sprintf("%s%s (%s): %s", indent, metrics.Label(f), f, v.String()))
	}
	return lines
}

func displayName(ref entity.Reference) string {
	if ref.DisplayName != "" {
		return ref.DisplayName
	}
	return ref.ID
}
