package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func failedResult(ms ...Mismatch) Result {
	res := Result{
		Mismatches:      ms,
		ConfidenceScore: confidence(ms),
		Disclaimer:      "Accuracy warning.",
		Audit:           AuditInfo{Timestamp: validatedAt},
	}
	return res
}

func salesMismatch(offset int) Mismatch {
	return Mismatch{
		Field:    "sales",
		Expected: 5385,
		Detected: 23450,
		Type:     TypeValueMismatch,
		Severity: SeverityHigh,
		Raw:      "$23,450",
		Offset:   offset,
	}
}

func TestCorrect_StrictSubstitutesAndWraps(t *testing.T) {
	text := "You had $23,450 in sales."
	out := Corrector{}.Correct(text, failedResult(salesMismatch(8)), EnforcementStrict)

	assert.True(t, strings.HasPrefix(out.Text, "Accuracy warning.\n\n"))
	assert.Contains(t, out.Text, "You had 5385 (corrected from 23450) in sales.")
	assert.True(t, strings.HasSuffix(out.Text, "[Validated against official performance data at 2025-09-15T09:30:00Z]"))
	assert.Equal(t, 1, out.Substituted)
	assert.False(t, out.AdminOverride)
}

func TestCorrect_OnlyHighSeverityIsSubstituted(t *testing.T) {
	low := Mismatch{Field: "gpSales", Expected: 5400, Detected: 5450, Type: TypeValueMismatch, Severity: SeverityLow, Raw: "$5,450", Offset: 4}
	text := "GP: $5,450"
	out := Corrector{}.Correct(text, failedResult(low), EnforcementStrict)
	assert.Contains(t, out.Text, "GP: $5,450")
	assert.Equal(t, 0, out.Substituted)
}

func TestCorrect_AdvisoryAnnotatesOnly(t *testing.T) {
	text := "You had $23,450 in sales."
	out := Corrector{}.Correct(text, failedResult(salesMismatch(8)), EnforcementAdvisory)

	assert.Contains(t, out.Text, text)
	assert.True(t, strings.HasPrefix(out.Text, "Accuracy warning."))
	assert.Contains(t, out.Text, "Validated against official performance data")
	assert.Equal(t, 0, out.Substituted)
}

func TestCorrect_BypassedLeavesTextAndFlagsOverride(t *testing.T) {
	text := "You had $23,450 in sales."
	out := Corrector{}.Correct(text, failedResult(salesMismatch(8)), EnforcementBypassed)
	assert.Equal(t, text, out.Text)
	assert.True(t, out.AdminOverride)
	assert.Equal(t, EnforcementBypassed, out.Mode)
}

func TestCorrect_ValidIsNoop(t *testing.T) {
	text := "All good."
	out := Corrector{}.Correct(text, Result{IsValid: true, ConfidenceScore: 1}, EnforcementStrict)
	assert.Equal(t, text, out.Text)
	assert.False(t, out.AdminOverride)
}

func TestCorrect_BoundarySafeFallback(t *testing.T) {
	m := Mismatch{Field: "invoices", Expected: 27, Detected: 450, Type: TypeValueMismatch, Severity: SeverityHigh, Raw: "450", Offset: 0}
	text := "Sales of 1450 across 450 invoices, 450.5 hours."
	out := Corrector{Footer: "[checked %s]"}.Correct(text, failedResult(m), EnforcementStrict)

	assert.Contains(t, out.Text, "Sales of 1450 across 27 (corrected from 450) invoices, 450.5 hours.")
	assert.True(t, strings.HasSuffix(out.Text, "[checked 2025-09-15T09:30:00Z]"))
}

func TestCorrect_MultipleSubstitutionsKeepOrder(t *testing.T) {
	text := "Invoices: 30\nSales: 23450"
	ms := []Mismatch{
		{Field: "sales", Expected: 11183, Detected: 23450, Type: TypeValueMismatch, Severity: SeverityHigh, Raw: "23450", Offset: 20},
		{Field: "invoices", Expected: 27, Detected: 30, Type: TypeValueMismatch, Severity: SeverityHigh, Raw: "30", Offset: 10},
	}
	out := Corrector{}.Correct(text, failedResult(ms...), EnforcementStrict)
	assert.Contains(t, out.Text, "Invoices: 27 (corrected from 30)\nSales: 11183 (corrected from 23450)")
	assert.Equal(t, 2, out.Substituted)
}
