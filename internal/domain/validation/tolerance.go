package validation

import (
	"math"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
)

// epsilon absorbs float noise so the tolerance boundary stays inclusive.
const epsilon = 1e-9

func toleranceFor(t metrics.Type, tol settings.Tolerances) float64 {
	switch t {
	case metrics.TypeCount:
		return tol.Count
	case metrics.TypeCurrency:
		return tol.Currency
	case metrics.TypePercentage:
		return tol.Percentage
	default:
		return tol.Decimal
	}
}

// withinTolerance reports whether |detected-expected| <= tolerance.
func withinTolerance(expected, detected, tolerance float64) bool {
	return math.Abs(detected-expected) <= tolerance+epsilon
}

// alignPercent reconciles fraction and whole-number percentages, so 0.48 and
// 48 describe the same value.
func alignPercent(expected, detected float64) (float64, float64) {
	switch {
	case expected <= 1 && detected > 1:
		return expected * 100, detected
	case expected > 1 && detected > 0 && detected <= 1:
		return expected, detected * 100
	}
	return expected, detected
}

// severityOf grades a disagreement. Count fields must match exactly, so any
// difference there is high.
func severityOf(t metrics.Type, expected, detected float64) Severity {
	if t == metrics.TypeCount {
		return SeverityHigh
	}
	diff := percentDiff(expected, detected)
	switch {
	case diff >= 15:
		return SeverityHigh
	case diff >= 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func percentDiff(expected, detected float64) float64 {
	if expected == 0 {
		return 100
	}
	return math.Abs(detected-expected) / math.Abs(expected) * 100
}

// confidence starts at 1 and loses a fixed penalty per mismatch.
func confidence(ms []Mismatch) float64 {
	score := 1.0
	for _, m := range ms {
		score -= penalties[m.Severity]
	}
	if score < 0 {
		return 0
	}
	return math.Round(score*100) / 100
}
