package validation

import (
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/rotisserie/eris"
)

var (
	ErrMalformedModelOutput = eris.New("malformed model output")
	ErrValidationSystem     = eris.New("validation system error")
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var penalties = map[Severity]float64{
	SeverityLow:    0.05,
	SeverityMedium: 0.15,
	SeverityHigh:   0.30,
}

// MismatchType says what kind of violation a Mismatch records.
type MismatchType string

const (
	TypeValueMismatch     MismatchType = "value_mismatch"
	TypeForbiddenField    MismatchType = "forbidden_field"
	TypeUnapprovedField   MismatchType = "unapproved_performance_field"
	TypeMalformedOutput   MismatchType = "malformed_output"
	TypeValidationFailure MismatchType = "validation_system_error"
)

// Mismatch is one disagreement between the answer and the official data, or
// one whitelist violation.
type Mismatch struct {
	Field     string       `json:"field"`
	Expected  float64      `json:"expected"`
	Detected  float64      `json:"detected"`
	Tolerance float64      `json:"tolerance"`
	Type      MismatchType `json:"type"`
	ValueType metrics.Type `json:"valueType,omitempty"`
	Severity  Severity     `json:"severity"`
	Message   string       `json:"message"`
	// Raw is the literal text the value was read from.
	Raw    string `json:"raw,omitempty"`
	Offset int    `json:"-"`
}

// AuditInfo identifies the validation run.
type AuditInfo struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Query     string    `json:"query"`
}

// Result of one validation. IsValid is true exactly when Mismatches is empty.
type Result struct {
	IsValid         bool       `json:"isValid"`
	Mismatches      []Mismatch `json:"mismatches"`
	ConfidenceScore float64    `json:"confidenceScore"`
	Disclaimer      string     `json:"disclaimer,omitempty"`
	Audit           AuditInfo  `json:"auditLog"`

	// Performance is false when the keyword test short-circuited.
	Performance bool `json:"performance"`
	Constrained bool `json:"constrained"`
	// Checked counts approved fields compared against official values.
	Checked int `json:"checked"`
	// Answer is the text the mismatch offsets refer to. For constrained
	// replies it is the rendered scorecard.
	Answer string `json:"-"`
}

// HasHigh reports whether any mismatch is high severity.
func (r Result) HasHigh() bool {
	for _, m := range r.Mismatches {
		if m.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Fields returns the distinct mismatched field names in order of first
// appearance.
func (r Result) Fields() []string {
	seen := make(map[string]bool, len(r.Mismatches))
	var out []string
	for _, m := range r.Mismatches {
		if !seen[m.Field] {
			seen[m.Field] = true
			out = append(out, m.Field)
		}
	}
	return out
}

// EnforcementMode decides what the Corrector does with a failed result.
type EnforcementMode string

const (
	EnforcementStrict   EnforcementMode = "strict"
	EnforcementAdvisory EnforcementMode = "advisory"
	EnforcementBypassed EnforcementMode = "bypassed"
)

// EnforcementFor picks the mode for a requesting role. Admins bypass
// correction only when the settings allow it.
func EnforcementFor(role entity.Role, s settings.Settings) EnforcementMode {
	if role == entity.RoleAdmin && s.AdminBypass {
		return EnforcementBypassed
	}
	if EnforcementMode(s.EnforcementMode) == EnforcementAdvisory {
		return EnforcementAdvisory
	}
	return EnforcementStrict
}
