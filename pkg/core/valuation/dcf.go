package valuation

import (
	"math"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/validate"
)

// Rates is the discount-rate / terminal-growth pair, in percentage points.
type Rates struct {
	WACC           float64
	TerminalGrowth float64
}

// Bridge holds the balance-sheet items that convert enterprise value to a
// per-share equity value.
type Bridge struct {
	Cash              float64
	Debt              float64
	SharesOutstanding float64
}

// RatesFrom extracts the base-case rate pair.
func RatesFrom(a *assumption.Assumptions) Rates {
	return Rates{WACC: a.WACC, TerminalGrowth: a.TerminalGrowthRate}
}

// BridgeFrom extracts the equity bridge inputs.
func BridgeFrom(a *assumption.Assumptions) Bridge {
	return Bridge{Cash: a.Cash, Debt: a.Debt, SharesOutstanding: a.SharesOutstanding}
}

// ValuationResult holds the DCF outputs at full float64 precision.
// Rounding happens only at the presentation boundary.
type ValuationResult struct {
	WACC                        float64 `json:"wacc"`
	TerminalGrowthRate          float64 `json:"terminalGrowthRate"`
	PresentValueOfCashFlows     float64 `json:"presentValueOfCashFlows"`
	TerminalValue               float64 `json:"terminalValue"`
	PresentValueOfTerminalValue float64 `json:"presentValueOfTerminalValue"`
	EnterpriseValue             float64 `json:"enterpriseValue"`
	EquityValue                 float64 `json:"equityValue"`
	IntrinsicValuePerShare      float64 `json:"intrinsicValuePerShare"`
	ImpliedExitMultiple         float64 `json:"impliedExitMultiple"` // TV / terminal-year EBITDA
}

// DiscountFactor returns 1 / (1 + wacc)^t for wacc in percentage points.
func DiscountFactor(wacc float64, t int) float64 {
	return 1 / math.Pow(1+wacc/100, float64(t))
}

// DiscountAndBridge performs the discounting and equity bridge of a standard
// 2-stage DCF over a fixed cash-flow series.
//
// FORMULA:
//
//	PV(CF) = Σ UFCF_t / (1 + WACC)^t
//	TV     = UFCF_N × (1 + g) / (WACC − g)
//	PV(TV) = TV / (1 + WACC)^N
//	EV     = PV(CF) + PV(TV)
//	Equity = EV + Cash − Debt
//	Value  = Equity / Shares
//
// TV is discounted with the final explicit year's factor. A negative per-share
// value is a valid result.
func DiscountAndBridge(series projection.CashFlowSeries, rates Rates, bridge Bridge) (ValuationResult, error) {
	if len(series) == 0 {
		return ValuationResult{}, &validate.ValidationError{Reason: "cash flow series is empty"}
	}
	if err := validate.Positive(assumption.FieldSharesOutstanding, bridge.SharesOutstanding); err != nil {
		return ValuationResult{}, err
	}
	if err := validate.Positive(assumption.FieldWACC, rates.WACC); err != nil {
		return ValuationResult{}, err
	}
	if rates.WACC <= rates.TerminalGrowth {
		return ValuationResult{}, &validate.DivergentModelError{
			WACC:           rates.WACC,
			TerminalGrowth: rates.TerminalGrowth,
		}
	}

	// 1. Explicit period
	var pvFCF float64
	for _, y := range series {
		pvFCF += y.UnleveredFreeCashFlow * DiscountFactor(rates.WACC, y.Year)
	}

	// 2. Terminal Value (Gordon Growth on the last explicit year)
	last := series.Last()
	w := rates.WACC / 100
	g := rates.TerminalGrowth / 100
	tv := last.UnleveredFreeCashFlow * (1 + g) / (w - g)
	pvTerminal := tv * DiscountFactor(rates.WACC, last.Year)

	// 3. Equity bridge
	ev := pvFCF + pvTerminal
	eqVal := ev + bridge.Cash - bridge.Debt
	perShare := eqVal / bridge.SharesOutstanding

	checks := []struct {
		name string
		v    float64
	}{
		{"presentValueOfCashFlows", pvFCF},
		{"terminalValue", tv},
		{"presentValueOfTerminalValue", pvTerminal},
		{"enterpriseValue", ev},
		{"equityValue", eqVal},
		{"intrinsicValuePerShare", perShare},
	}
	for _, c := range checks {
		if err := validate.CheckFinite(c.name, 0, c.v); err != nil {
			return ValuationResult{}, err
		}
	}

	// Informational only: a near-zero final EBITDA leaves it at 0 rather
	// than failing an otherwise finite valuation.
	impliedMultiple := 0.0
	if last.EBITDA != 0 {
		impliedMultiple = tv / last.EBITDA
	}
	if !validate.IsFinite(impliedMultiple) {
		impliedMultiple = 0
	}

	return ValuationResult{
		WACC:                        rates.WACC,
		TerminalGrowthRate:          rates.TerminalGrowth,
		PresentValueOfCashFlows:     pvFCF,
		TerminalValue:               tv,
		PresentValueOfTerminalValue: pvTerminal,
		EnterpriseValue:             ev,
		EquityValue:                 eqVal,
		IntrinsicValuePerShare:      perShare,
		ImpliedExitMultiple:         impliedMultiple,
	}, nil
}

// Value runs DiscountAndBridge with the assumptions' own rates and bridge.
func Value(series projection.CashFlowSeries, a *assumption.Assumptions) (ValuationResult, error) {
	return DiscountAndBridge(series, RatesFrom(a), BridgeFrom(a))
}
