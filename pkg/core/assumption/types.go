// Package assumption defines the single-year assumption set that drives a DCF
// valuation and the strict boundary that turns loosely typed payloads into it.
// All rates are in percentage points: 9 means 9%.
package assumption

import (
	"dcf_valuation/pkg/core/validate"
)

// Assumptions is the validated input record. It is never mutated by the
// engines; sensitivity cells substitute rates through valuation.Rates.
type Assumptions struct {
	CurrentRevenue     float64 `json:"currentRevenue" yaml:"currentRevenue"`
	GrowthRate         float64 `json:"growthRate" yaml:"growthRate"`
	EBITDAMargin       float64 `json:"ebitdaMargin" yaml:"ebitdaMargin"`
	TaxRate            float64 `json:"taxRate" yaml:"taxRate"`
	CapexRate          float64 `json:"capexRate" yaml:"capexRate"`
	DAndARate          float64 `json:"dA_Rate" yaml:"dA_Rate"`
	NWCRate            float64 `json:"nwcRate" yaml:"nwcRate"`
	WACC               float64 `json:"wacc" yaml:"wacc"`
	TerminalGrowthRate float64 `json:"terminalGrowthRate" yaml:"terminalGrowthRate"`
	SharesOutstanding  float64 `json:"sharesOutstanding" yaml:"sharesOutstanding"`
	Cash               float64 `json:"cash" yaml:"cash"`
	Debt               float64 `json:"debt" yaml:"debt"`
}

// Wire field names, in the order they are reported when missing.
const (
	FieldCurrentRevenue     = "currentRevenue"
	FieldGrowthRate         = "growthRate"
	FieldEBITDAMargin       = "ebitdaMargin"
	FieldTaxRate            = "taxRate"
	FieldCapexRate          = "capexRate"
	FieldDAndARate          = "dA_Rate"
	FieldNWCRate            = "nwcRate"
	FieldWACC               = "wacc"
	FieldTerminalGrowthRate = "terminalGrowthRate"
	FieldSharesOutstanding  = "sharesOutstanding"
	FieldCash               = "cash"
	FieldDebt               = "debt"
)

// fields binds each wire name to its slot in Assumptions.
func (a *Assumptions) fields() []struct {
	name string
	ptr  *float64
} {
	return []struct {
		name string
		ptr  *float64
	}{
		{FieldCurrentRevenue, &a.CurrentRevenue},
		{FieldGrowthRate, &a.GrowthRate},
		{FieldEBITDAMargin, &a.EBITDAMargin},
		{FieldTaxRate, &a.TaxRate},
		{FieldCapexRate, &a.CapexRate},
		{FieldDAndARate, &a.DAndARate},
		{FieldNWCRate, &a.NWCRate},
		{FieldWACC, &a.WACC},
		{FieldTerminalGrowthRate, &a.TerminalGrowthRate},
		{FieldSharesOutstanding, &a.SharesOutstanding},
		{FieldCash, &a.Cash},
		{FieldDebt, &a.Debt},
	}
}

// RequiredFields lists every wire field a request must carry.
func RequiredFields() []string {
	var a Assumptions
	fs := a.fields()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

// Validate range-checks every field and the base-case convergence condition.
// Field errors are *validate.ValidationError; wacc <= terminalGrowthRate is a
// *validate.DivergentModelError.
func (a *Assumptions) Validate() error {
	checks := []error{
		validate.Positive(FieldCurrentRevenue, a.CurrentRevenue),
		validate.Rate(FieldGrowthRate, a.GrowthRate),
		validate.Percent(FieldEBITDAMargin, a.EBITDAMargin),
		validate.Percent(FieldTaxRate, a.TaxRate),
		validate.Percent(FieldCapexRate, a.CapexRate),
		validate.Percent(FieldDAndARate, a.DAndARate),
		validate.Rate(FieldNWCRate, a.NWCRate),
		validate.Positive(FieldWACC, a.WACC),
		validate.Rate(FieldTerminalGrowthRate, a.TerminalGrowthRate),
		validate.Positive(FieldSharesOutstanding, a.SharesOutstanding),
		validate.NonNegative(FieldCash, a.Cash),
		validate.NonNegative(FieldDebt, a.Debt),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if a.WACC <= a.TerminalGrowthRate {
		return &validate.DivergentModelError{
			WACC:           a.WACC,
			TerminalGrowth: a.TerminalGrowthRate,
			Context:        "base case",
		}
	}
	return nil
}
