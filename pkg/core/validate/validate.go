// Package validate provides the error taxonomy and the numeric helpers shared
// by the projection, valuation and sensitivity engines.
package validate

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FINITENESS GUARDS
// =============================================================================

// CheckFinite returns a NumericOverflowError when v is NaN or ±Inf.
func CheckFinite(quantity string, year int, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &NumericOverflowError{Quantity: quantity, Year: year, Value: v}
	}
	return nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// =============================================================================
// DOMAIN CHECKS
// =============================================================================

// Positive requires v > 0.
func Positive(field string, v float64) error {
	if !IsFinite(v) {
		return Invalid(field, "must be a finite number")
	}
	if v <= 0 {
		return Invalid(field, "must be greater than 0 (got %v)", v)
	}
	return nil
}

// NonNegative requires v >= 0.
func NonNegative(field string, v float64) error {
	if !IsFinite(v) {
		return Invalid(field, "must be a finite number")
	}
	if v < 0 {
		return Invalid(field, "must not be negative (got %v)", v)
	}
	return nil
}

// Percent requires v in [0, 100].
func Percent(field string, v float64) error {
	if !IsFinite(v) {
		return Invalid(field, "must be a finite number")
	}
	if v < 0 || v > 100 {
		return Invalid(field, "must be between 0 and 100 (got %v)", v)
	}
	return nil
}

// Rate requires a finite growth-style rate strictly above -100%.
func Rate(field string, v float64) error {
	if !IsFinite(v) {
		return Invalid(field, "must be a finite number")
	}
	if v <= -100 {
		return Invalid(field, "must be greater than -100 (got %v)", v)
	}
	return nil
}

// =============================================================================
// PRESENTATION ROUNDING
// Only the API/report boundary rounds; engines keep full float64 precision.
// =============================================================================

// Round2 rounds v to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Round2Table rounds every cell of a matrix, preserving its shape.
func Round2Table(table [][]float64) [][]float64 {
	out := make([][]float64, len(table))
	for i, row := range table {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = Round2(v)
		}
	}
	return out
}

// FormatPercent renders a percentage-point value as "9.00%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// =============================================================================
// GROWTH METRICS
// =============================================================================

// GrowthPercent is the period-over-period change in percentage points,
// measured against |prior| so a shrinking loss reads as positive growth.
// ok is false when prior is zero and no rate exists.
func GrowthPercent(current, prior float64) (pct float64, ok bool) {
	if prior == 0 {
		return 0, current == 0
	}
	pct = (current - prior) / math.Abs(prior) * 100
	return pct, IsFinite(pct)
}

// CalculateCAGR calculates compound annual growth rate as a percentage.
// CAGR = ((EndValue / StartValue) ^ (1/years)) - 1
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || endValue < 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}
