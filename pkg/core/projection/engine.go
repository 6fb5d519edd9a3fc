package projection

import (
	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/validate"
)

// ProjectionEngine expands a single-year assumption set into a multi-year
// unlevered free cash flow forecast. It holds configuration only and is safe
// for concurrent use.
type ProjectionEngine struct {
	HorizonYears int
}

// NewProjectionEngine creates an engine for the given horizon.
// A non-positive horizon falls back to DefaultHorizonYears.
func NewProjectionEngine(horizonYears int) *ProjectionEngine {
	if horizonYears <= 0 {
		horizonYears = DefaultHorizonYears
	}
	return &ProjectionEngine{HorizonYears: horizonYears}
}

// Project runs the forecast with the engine's horizon.
func (e *ProjectionEngine) Project(a *assumption.Assumptions) (CashFlowSeries, error) {
	return Project(a, e.HorizonYears)
}

// Project builds exactly horizonYears years. Growth compounds on the prior
// projected revenue, never on currentRevenue.
//
// Inputs are assumed to have passed Assumptions.Validate; only structural
// problems (horizon) and non-finite intermediates are reported here.
func Project(a *assumption.Assumptions, horizonYears int) (CashFlowSeries, error) {
	if a == nil {
		return nil, &validate.ValidationError{Reason: "assumptions are required"}
	}
	if horizonYears < 1 {
		return nil, validate.Invalid("horizonYears", "must be at least 1 (got %d)", horizonYears)
	}

	series := make(CashFlowSeries, 0, horizonYears)
	prevRevenue := a.CurrentRevenue
	for t := 1; t <= horizonYears; t++ {
		year, err := ProjectYear(a, prevRevenue, t)
		if err != nil {
			return nil, err
		}
		series = append(series, year)
		prevRevenue = year.Revenue
	}
	return series, nil
}

// ProjectYear calculates year t from the prior year's revenue.
//
// FORMULA:
//
//	Revenue_t  = Revenue_{t-1} × (1 + g)
//	EBITDA_t   = Revenue_t × margin
//	D&A_t      = Revenue_t × d&a rate
//	EBIT_t     = EBITDA_t − D&A_t
//	NOPAT_t    = EBIT_t × (1 − tax)
//	CapEx_t    = Revenue_t × capex rate
//	ΔNWC_t     = (Revenue_t − Revenue_{t-1}) × nwc rate
//	UFCF_t     = NOPAT_t + D&A_t − CapEx_t − ΔNWC_t
func ProjectYear(a *assumption.Assumptions, prevRevenue float64, t int) (ProjectionYear, error) {
	revenue := prevRevenue * (1 + a.GrowthRate/100)
	ebitda := revenue * a.EBITDAMargin / 100
	dAndA := revenue * a.DAndARate / 100
	ebit := ebitda - dAndA
	nopat := ebit * (1 - a.TaxRate/100)
	capex := revenue * a.CapexRate / 100
	deltaNWC := (revenue - prevRevenue) * a.NWCRate / 100
	ufcf := nopat + dAndA - capex - deltaNWC

	checks := []struct {
		name string
		v    float64
	}{
		{"revenue", revenue},
		{"ebitda", ebitda},
		{"ebit", ebit},
		{"nopat", nopat},
		{"capex", capex},
		{"deltaNWC", deltaNWC},
		{"unleveredFreeCashFlow", ufcf},
	}
	for _, c := range checks {
		if err := validate.CheckFinite(c.name, t, c.v); err != nil {
			return ProjectionYear{}, err
		}
	}

	return ProjectionYear{
		Year:                  t,
		Revenue:               revenue,
		EBITDA:                ebitda,
		DAndA:                 dAndA,
		EBIT:                  ebit,
		NOPAT:                 nopat,
		Capex:                 capex,
		DeltaNWC:              deltaNWC,
		UnleveredFreeCashFlow: ufcf,
	}, nil
}
