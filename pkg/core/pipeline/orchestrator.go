// Package pipeline composes the projection, valuation and sensitivity engines
// into a single request-scoped run.
package pipeline

import (
	"context"
	"fmt"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/valuation"
)

// Options configures a run.
type Options struct {
	HorizonYears int                  `json:"horizon_years" yaml:"horizon_years"`
	Grid         valuation.GridConfig `json:"grid" yaml:"grid"`
}

// DefaultOptions is a 5-year forecast with the default 5×5 grid.
func DefaultOptions() Options {
	return Options{
		HorizonYears: projection.DefaultHorizonYears,
		Grid:         valuation.DefaultGridConfig(),
	}
}

// Report is everything one run produces. It is built fresh per request and
// not modified afterwards.
type Report struct {
	Assumptions assumption.Assumptions     `json:"assumptions"`
	Projections projection.CashFlowSeries  `json:"projections"`
	Valuation   valuation.ValuationResult  `json:"valuation"`
	Sensitivity *valuation.SensitivityGrid `json:"sensitivity"`
}

// Run validates the assumptions, projects cash flows once, values the base
// case and builds the sensitivity grid over the same series. Any failure
// aborts the run; no partial report is returned.
func Run(ctx context.Context, a *assumption.Assumptions, opts Options) (*Report, error) {
	if a == nil {
		return nil, fmt.Errorf("run: assumptions are required")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	series, err := projection.NewProjectionEngine(opts.HorizonYears).Project(a)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	result, err := valuation.Value(series, a)
	if err != nil {
		return nil, fmt.Errorf("valuation: %w", err)
	}

	grid, err := valuation.BuildGrid(ctx, series, a, opts.Grid)
	if err != nil {
		return nil, fmt.Errorf("sensitivity: %w", err)
	}

	return &Report{
		Assumptions: *a,
		Projections: series,
		Valuation:   result,
		Sensitivity: grid,
	}, nil
}
