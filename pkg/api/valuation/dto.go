package valuation

import (
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/validate"
)

// SensitivityAnalysis is the wire form of the grid. Table[i][j] belongs to
// WACCHeaders[i] × GrowthHeaders[j]; clients index it without re-sorting.
type SensitivityAnalysis struct {
	WACCHeaders   []string    `json:"wacc_headers"`
	GrowthHeaders []string    `json:"growth_headers"`
	Table         [][]float64 `json:"table"`
}

// DCFResponse is the success body of POST /api/dcf.
type DCFResponse struct {
	IntrinsicValue      float64             `json:"intrinsicValue"`
	SensitivityAnalysis SensitivityAnalysis `json:"sensitivityAnalysis"`
}

// ErrorDetail is the machine-readable failure body.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewDCFResponse rounds to 2 decimals and formats the axis headers. This is
// the only place engine output is rounded.
func NewDCFResponse(r *pipeline.Report) DCFResponse {
	g := r.Sensitivity
	waccHeaders := make([]string, len(g.WACCAxis))
	for i, w := range g.WACCAxis {
		waccHeaders[i] = validate.FormatPercent(w)
	}
	growthHeaders := make([]string, len(g.GrowthAxis))
	for j, gr := range g.GrowthAxis {
		growthHeaders[j] = validate.FormatPercent(gr)
	}

	return DCFResponse{
		IntrinsicValue: validate.Round2(r.Valuation.IntrinsicValuePerShare),
		SensitivityAnalysis: SensitivityAnalysis{
			WACCHeaders:   waccHeaders,
			GrowthHeaders: growthHeaders,
			Table:         validate.Round2Table(g.Table),
		},
	}
}
