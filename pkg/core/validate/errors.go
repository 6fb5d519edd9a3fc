package validate

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error class reported at the API boundary.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindDivergentModel  Kind = "divergent_model"
	KindNumericOverflow Kind = "numeric_overflow"
	KindInternal        Kind = "internal_error"
)

// ValidationError reports a missing, non-numeric or out-of-domain input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// Invalid is shorthand for a field-level ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DivergentModelError reports a discount rate at or below the terminal growth
// rate, where the Gordon growth perpetuity has no finite value.
type DivergentModelError struct {
	WACC           float64
	TerminalGrowth float64
	Context        string // "base case" or "sensitivity axis"
}

func (e *DivergentModelError) Error() string {
	ctx := e.Context
	if ctx == "" {
		ctx = "base case"
	}
	return fmt.Sprintf("divergent model (%s): wacc %.4f%% must exceed terminal growth %.4f%%", ctx, e.WACC, e.TerminalGrowth)
}

func (e *DivergentModelError) Kind() Kind { return KindDivergentModel }

// NumericOverflowError reports an intermediate value that left the finite
// float64 range.
type NumericOverflowError struct {
	Quantity string
	Year     int // 0 when not tied to a projection year
	Value    float64
}

func (e *NumericOverflowError) Error() string {
	if e.Year > 0 {
		return fmt.Sprintf("numeric overflow: %s in year %d is %v", e.Quantity, e.Year, e.Value)
	}
	return fmt.Sprintf("numeric overflow: %s is %v", e.Quantity, e.Value)
}

func (e *NumericOverflowError) Kind() Kind { return KindNumericOverflow }

// KindOf classifies err, looking through wrapping. Unknown errors are internal.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// FieldOf returns the offending field of a ValidationError, if any.
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
