package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Input is everything one validation depends on.
type Input struct {
	Query   string
	Text    string
	Ref     entity.Reference
	Metrics *metrics.Metrics
	// Constrained is set when the prompt asked for the JSON scorecard.
	Constrained bool
	UserID      string
}

// Validator checks generated answers against official metrics. For a fixed
// clock and settings snapshot the result depends only on Input.
type Validator struct {
	settings settings.Store
	now      func() time.Time
}

func NewValidator(store settings.Store, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{settings: store, now: now}
}

// Validate never panics. An internal failure yields a failed result with zero
// confidence together with an error wrapping ErrValidationSystem. A constrained
// reply that does not parse yields ErrMalformedModelOutput.
func (v *Validator) Validate(ctx context.Context, in Input) (res Result, err error) {
	audit := AuditInfo{Timestamp: v.now().UTC(), UserID: in.UserID, Query: in.Query}
	s := settings.Defaults()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("validation: recovered panic", zap.Any("panic", r), zap.String("user_id", in.UserID))
			res = systemFailure(audit, in, s.Disclaimers.System)
			err = eris.Wrapf(ErrValidationSystem, "validation: panic: %v", r)
		}
	}()

	s, err = v.settings.Get(ctx)
	if err != nil {
		return systemFailure(audit, in, settings.Defaults().Disclaimers.System), eris.Wrapf(ErrValidationSystem, "validation: settings: %v", err)
	}

	res = Result{Audit: audit, Constrained: in.Constrained, Answer: in.Text}
	if !IsPerformanceQuery(in.Query, s.ExtraKeywords) {
		res.IsValid = true
		res.ConfidenceScore = 1
		return res, nil
	}
	res.Performance = true

	var (
		claims []Claim
		extra  []string
	)
	if in.Constrained {
		sc, perr := ParseScorecard(in.Text)
		if perr != nil {
			res.Mismatches = []Mismatch{{
				Field:    "_response",
				Type:     TypeMalformedOutput,
				Severity: SeverityHigh,
				Message:  "model reply was not the required JSON scorecard",
			}}
			res.ConfidenceScore = 0
			res.Disclaimer = s.Disclaimers.System
			return res, perr
		}
		res.Answer = sc.Render()
		claims, extra = sc.Claims, sc.Extra
	} else {
		claims = ExtractClaims(in.Text)
	}

	for _, c := range claims {
		m, checked := compareClaim(c, in.Metrics, s.Tolerances)
		if checked {
			res.Checked++
		}
		if m != nil {
			res.Mismatches = append(res.Mismatches, *m)
		}
	}
	res.Mismatches = append(res.Mismatches, checkWhitelist(res.Answer, extra)...)

	res.IsValid = len(res.Mismatches) == 0
	res.ConfidenceScore = confidence(res.Mismatches)
	if !res.IsValid {
		res.Disclaimer = s.Disclaimers.Notice
		if res.HasHigh() {
			res.Disclaimer = s.Disclaimers.Warning
		}
	}
	return res, nil
}

// compareClaim checks one claim. checked is false when the official data has
// no value for the field.
func compareClaim(c Claim, m *metrics.Metrics, tol settings.Tolerances) (*Mismatch, bool) {
	expected, ok := m.Number(c.Field)
	if !ok {
		return nil, false
	}
	typ := metrics.TypeOf(c.Field)
	detected := c.Value
	if typ == metrics.TypePercentage {
		expected, detected = alignPercent(expected, detected)
	}

	tolerance := toleranceFor(typ, tol)
	if withinTolerance(expected, detected, tolerance) {
		return nil, true
	}

	return &Mismatch{
		Field:     string(c.Field),
		Expected:  expected,
		Detected:  detected,
		Tolerance: tolerance,
		Type:      TypeValueMismatch,
		ValueType: typ,
		Severity:  severityOf(typ, expected, detected),
		Message: fmt.Sprintf("%s reported as %s, official value is %s",
			metrics.Label(c.Field), metrics.FormatNumber(detected), metrics.FormatNumber(expected)),
		Raw:    c.Raw,
		Offset: c.Start,
	}, true
}

func systemFailure(audit AuditInfo, in Input, disclaimer string) Result {
	if disclaimer == "" {
		disclaimer = settings.Defaults().Disclaimers.System
	}
	return Result{
		IsValid: false,
		Mismatches: []Mismatch{{
			Field:    "_system",
			Type:     TypeValidationFailure,
			Severity: SeverityHigh,
			Message:  "answer could not be validated",
		}},
		ConfidenceScore: 0,
		Disclaimer:      disclaimer,
		Audit:           audit,
		Performance:     true,
		Constrained:     in.Constrained,
		Answer:          in.Text,
	}
}
