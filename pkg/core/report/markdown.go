// Package report renders a valuation run as Markdown and HTML.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/validate"
)

// DefaultCurrency is used when no currency code is configured. Figures are
// formatted only; no conversion happens.
const DefaultCurrency = money.USD

// maxMinorUnits keeps money.New's int64 amount well clear of overflow.
const maxMinorUnits = 1e15

// formatMoney renders v with the currency's symbol and minor-unit precision.
func formatMoney(v float64, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return decimal.NewFromFloat(v).StringFixed(2)
	}
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	if minor.Abs().GreaterThan(decimal.NewFromFloat(maxMinorUnits)) {
		return cur.Grapheme + decimal.NewFromFloat(v).StringFixed(int32(cur.Fraction))
	}
	return money.New(minor.IntPart(), code).Display()
}

// Markdown renders the summary, the projection table and the sensitivity grid.
func Markdown(r *pipeline.Report, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	m := func(v float64) string { return formatMoney(v, currency) }

	var b strings.Builder
	v := r.Valuation
	a := r.Assumptions

	b.WriteString("# DCF Valuation\n\n")
	fmt.Fprintf(&b, "WACC %s, terminal growth %s, %d-year explicit forecast.\n\n",
		validate.FormatPercent(v.WACC), validate.FormatPercent(v.TerminalGrowthRate), len(r.Projections))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| PV of cash flows | %s |\n", m(v.PresentValueOfCashFlows))
	fmt.Fprintf(&b, "| Terminal value | %s |\n", m(v.TerminalValue))
	fmt.Fprintf(&b, "| PV of terminal value | %s |\n", m(v.PresentValueOfTerminalValue))
	fmt.Fprintf(&b, "| Enterprise value | %s |\n", m(v.EnterpriseValue))
	fmt.Fprintf(&b, "| + Cash | %s |\n", m(a.Cash))
	fmt.Fprintf(&b, "| − Debt | %s |\n", m(a.Debt))
	fmt.Fprintf(&b, "| Equity value | %s |\n", m(v.EquityValue))
	fmt.Fprintf(&b, "| Shares outstanding | %s |\n", decimal.NewFromFloat(a.SharesOutstanding).String())
	fmt.Fprintf(&b, "| **Intrinsic value per share** | **%s** |\n", m(validate.Round2(v.IntrinsicValuePerShare)))
	if v.EnterpriseValue != 0 {
		fmt.Fprintf(&b, "| Terminal value share of EV | %s |\n", validate.FormatPercent(v.PresentValueOfTerminalValue/v.EnterpriseValue*100))
	}
	if v.ImpliedExitMultiple != 0 {
		fmt.Fprintf(&b, "| Implied exit multiple (TV / EBITDA) | %.1fx |\n", v.ImpliedExitMultiple)
	}
	b.WriteString("\n")

	b.WriteString("## Projections\n\n")
	b.WriteString("| Year | Revenue | Growth | EBITDA | D&A | EBIT | NOPAT | CapEx | ΔNWC | UFCF |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	prev := a.CurrentRevenue
	for _, y := range r.Projections {
		growth := "n/a"
		if pct, ok := validate.GrowthPercent(y.Revenue, prev); ok {
			growth = validate.FormatPercent(pct)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			y.Year, m(y.Revenue), growth, m(y.EBITDA), m(y.DAndA), m(y.EBIT), m(y.NOPAT),
			m(y.Capex), m(y.DeltaNWC), m(y.UnleveredFreeCashFlow))
		prev = y.Revenue
	}
	if n := len(r.Projections); n > 0 {
		cagr := validate.CalculateCAGR(a.CurrentRevenue, r.Projections[n-1].Revenue, n)
		if !math.IsNaN(cagr) {
			fmt.Fprintf(&b, "\nRevenue CAGR over the forecast: %s\n", validate.FormatPercent(cagr))
		}
	}
	b.WriteString("\n")

	if g := r.Sensitivity; g != nil {
		b.WriteString("## Sensitivity (value per share)\n\n")
		b.WriteString("| WACC \\ g |")
		for _, gr := range g.GrowthAxis {
			fmt.Fprintf(&b, " %s |", validate.FormatPercent(gr))
		}
		b.WriteString("\n|---|")
		b.WriteString(strings.Repeat("---:|", len(g.GrowthAxis)))
		b.WriteString("\n")
		ci, cj := g.Center()
		for i, w := range g.WACCAxis {
			fmt.Fprintf(&b, "| %s |", validate.FormatPercent(w))
			for j, cell := range g.Table[i] {
				s := m(validate.Round2(cell))
				if i == ci && j == cj {
					s = "**" + s + "**"
				}
				fmt.Fprintf(&b, " %s |", s)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
