package settings

import (
	"context"
	"strings"
)

// Tolerances are absolute per value type. Boundaries are inclusive.
type Tolerances struct {
	Count      float64 `yaml:"count" json:"count"`
	Currency   float64 `yaml:"currency" json:"currency"`
	Decimal    float64 `yaml:"decimal" json:"decimal"`
	Percentage float64 `yaml:"percentage" json:"percentage"`
}

// Disclaimers shown when validation fails.
type Disclaimers struct {
	Warning string `yaml:"warning" json:"warning"`
	Notice  string `yaml:"notice" json:"notice"`
	System  string `yaml:"system" json:"system"`
	// Footer is a fmt template taking the validation timestamp.
	Footer string `yaml:"footer" json:"footer"`
	// Unavailable replaces the answer when no trusted metrics exist.
	Unavailable string `yaml:"unavailable" json:"unavailable"`
}

// Decoding parameters for the model.
type Decoding struct {
	Temperature float32 `yaml:"temperature" json:"temperature"`
	// ConstrainedTemperature is forced for JSON scorecard prompts.
	ConstrainedTemperature float32 `yaml:"constrained_temperature" json:"constrainedTemperature"`
	TopP                   float32 `yaml:"top_p" json:"topP"`
	TopK                   int     `yaml:"top_k" json:"topK"`
	MaxTokens              int     `yaml:"max_tokens" json:"maxTokens"`
	Seed                   *int    `yaml:"seed" json:"seed,omitempty"`
}

// Settings are the prompt and validation knobs an operator can change without
// a deploy.
type Settings struct {
	EnforcementMode string `yaml:"enforcement_mode" json:"enforcementMode"`
	// AdminBypass lets admins skip correction. The choice is still audited.
	AdminBypass     bool              `yaml:"admin_bypass" json:"adminBypass"`
	MaxContextChars int               `yaml:"max_context_chars" json:"maxContextChars"`
	Decoding        Decoding          `yaml:"decoding" json:"decoding"`
	Tolerances      Tolerances        `yaml:"tolerances" json:"tolerances"`
	Disclaimers     Disclaimers       `yaml:"disclaimers" json:"disclaimers"`
	RolePrompts     map[string]string `yaml:"role_prompts" json:"rolePrompts,omitempty"`
	// ExtraKeywords extend the performance keyword test.
	ExtraKeywords []string `yaml:"extra_keywords" json:"extraKeywords,omitempty"`
	IncludeGoals  bool     `yaml:"include_goals" json:"includeGoals"`
}

// Store hands out the current settings snapshot.
type Store interface {
	Get(ctx context.Context) (Settings, error)
}

// Source loads settings from their backing medium.
type Source interface {
	Load(ctx context.Context) (Settings, error)
}

const (
	defaultMaxContextChars = 6000
	minContextChars        = 500
)

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		EnforcementMode: "strict",
		AdminBypass:     true,
		MaxContextChars: defaultMaxContextChars,
		Decoding: Decoding{
			Temperature:            0.3,
			ConstrainedTemperature: 0.01,
			TopP:                   0.9,
			TopK:                   40,
			MaxTokens:              800,
		},
		Tolerances: Tolerances{Count: 0, Currency: 0.01, Decimal: 0.01, Percentage: 0.1},
		Disclaimers: Disclaimers{
			Warning:     "Accuracy warning: some figures in this answer did not match the official performance data and have been corrected. Verify against your scorecard before acting on them.",
			Notice:      "Note: some figures in this answer differ slightly from the official performance data. Please cross-reference your scorecard.",
			System:      "This answer could not be verified against the official performance data. Treat all figures as unconfirmed.",
			Footer:      "[Validated against official performance data at %s]",
			Unavailable: "Performance data for this request is currently unavailable, so no figures can be reported. Please try again later or check your scorecard directly.",
		},
		IncludeGoals: true,
	}
}

// Normalize fills zero values from Defaults and clamps out-of-range knobs.
func (s Settings) Normalize() Settings {
	d := Defaults()
	switch strings.ToLower(strings.TrimSpace(s.EnforcementMode)) {
	case "strict", "advisory":
		s.EnforcementMode = strings.ToLower(strings.TrimSpace(s.EnforcementMode))
	default:
		s.EnforcementMode = d.EnforcementMode
	}
	if s.MaxContextChars <= 0 {
		s.MaxContextChars = d.MaxContextChars
	}
	if s.MaxContextChars < minContextChars {
		s.MaxContextChars = minContextChars
	}
	if s.Decoding.ConstrainedTemperature <= 0 || s.Decoding.ConstrainedTemperature > 0.1 {
		s.Decoding.ConstrainedTemperature = d.Decoding.ConstrainedTemperature
	}
	if s.Decoding.MaxTokens <= 0 {
		s.Decoding.MaxTokens = d.Decoding.MaxTokens
	}
	if s.Decoding.TopP <= 0 || s.Decoding.TopP > 1 {
		s.Decoding.TopP = d.Decoding.TopP
	}
	if s.Tolerances.Count < 0 {
		s.Tolerances.Count = 0
	}
	if s.Tolerances.Currency <= 0 {
		s.Tolerances.Currency = d.Tolerances.Currency
	}
	if s.Tolerances.Decimal <= 0 {
		s.Tolerances.Decimal = d.Tolerances.Decimal
	}
	if s.Tolerances.Percentage <= 0 {
		s.Tolerances.Percentage = d.Tolerances.Percentage
	}
	if s.Disclaimers.Warning == "" {
		s.Disclaimers.Warning = d.Disclaimers.Warning
	}
	if s.Disclaimers.Notice == "" {
		s.Disclaimers.Notice = d.Disclaimers.Notice
	}
	if s.Disclaimers.System == "" {
		s.Disclaimers.System = d.Disclaimers.System
	}
	if s.Disclaimers.Footer == "" || !strings.Contains(s.Disclaimers.Footer, "%s") {
		s.Disclaimers.Footer = d.Disclaimers.Footer
	}
	if s.Disclaimers.Unavailable == "" {
		s.Disclaimers.Unavailable = d.Disclaimers.Unavailable
	}
	return s
}

type static struct{ s Settings }

// Static returns a Store that always yields s.
func Static(s Settings) Store { return static{s: s.Normalize()} }

func (st static) Get(context.Context) (Settings, error) { return st.s, nil }
