package projection

// DefaultHorizonYears is the explicit forecast length when none is configured.
const DefaultHorizonYears = 5

// ProjectionYear is one forecast year of the unlevered free cash flow build.
type ProjectionYear struct {
	Year                  int     `json:"year"` // 1-based
	Revenue               float64 `json:"revenue"`
	EBITDA                float64 `json:"ebitda"`
	DAndA                 float64 `json:"dAndA"`
	EBIT                  float64 `json:"ebit"`
	NOPAT                 float64 `json:"nopat"`
	Capex                 float64 `json:"capex"`
	DeltaNWC              float64 `json:"deltaNWC"`
	UnleveredFreeCashFlow float64 `json:"unleveredFreeCashFlow"`
}

// CashFlowSeries is the ordered forecast, year 1 first.
type CashFlowSeries []ProjectionYear

// Horizon is the number of explicit forecast years.
func (s CashFlowSeries) Horizon() int { return len(s) }

// Last returns the final explicit year. The series must not be empty.
func (s CashFlowSeries) Last() ProjectionYear { return s[len(s)-1] }
