package valuation

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/validate"
)

// GridConfig shapes the sensitivity axes. Steps are in percentage points.
type GridConfig struct {
	WACCPoints   int     `json:"wacc_points" yaml:"wacc_points"`
	GrowthPoints int     `json:"growth_points" yaml:"growth_points"`
	WACCStep     float64 `json:"wacc_step" yaml:"wacc_step"`
	GrowthStep   float64 `json:"growth_step" yaml:"growth_step"`
	Parallel     bool    `json:"parallel" yaml:"parallel"`
	MaxWorkers   int     `json:"max_workers" yaml:"max_workers"` // 0 = GOMAXPROCS
}

// DefaultGridConfig is a 5×5 grid, ±2pp WACC in 1pp steps and ±1pp terminal
// growth in 0.5pp steps.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		WACCPoints:   5,
		GrowthPoints: 5,
		WACCStep:     1.0,
		GrowthStep:   0.5,
		Parallel:     true,
	}
}

// MinStep is the smallest axis step, in percentage points. Axis headers are
// printed to two decimals, so finer steps would repeat labels.
const MinStep = 0.01

// Validate checks the axis shape parameters.
func (c GridConfig) Validate() error {
	if c.WACCPoints < 1 || c.WACCPoints%2 == 0 {
		return validate.Invalid("wacc_points", "must be a positive odd number (got %d)", c.WACCPoints)
	}
	if c.GrowthPoints < 1 || c.GrowthPoints%2 == 0 {
		return validate.Invalid("growth_points", "must be a positive odd number (got %d)", c.GrowthPoints)
	}
	if !(c.WACCStep >= MinStep) || !validate.IsFinite(c.WACCStep) {
		return validate.Invalid("wacc_step", "must be at least %v percentage points (got %v)", MinStep, c.WACCStep)
	}
	if !(c.GrowthStep >= MinStep) || !validate.IsFinite(c.GrowthStep) {
		return validate.Invalid("growth_step", "must be at least %v percentage points (got %v)", MinStep, c.GrowthStep)
	}
	if c.MaxWorkers < 0 {
		return validate.Invalid("max_workers", "must not be negative (got %d)", c.MaxWorkers)
	}
	return nil
}

// SensitivityGrid is a row-major matrix of per-share values.
// Table[i][j] is the value at WACCAxis[i] × GrowthAxis[j]: rows are WACC,
// columns are terminal growth.
type SensitivityGrid struct {
	WACCAxis   []float64   `json:"waccAxis"`
	GrowthAxis []float64   `json:"growthAxis"`
	Table      [][]float64 `json:"table"`
}

// Center returns the row and column of the base-case rates.
func (g *SensitivityGrid) Center() (row, col int) {
	return len(g.WACCAxis) / 2, len(g.GrowthAxis) / 2
}

// Axis builds an odd-length, strictly increasing range centered on center:
// center + (k − points/2) × step for k = 0..points-1. The middle element is
// center itself, bit for bit.
func Axis(center, step float64, points int) ([]float64, error) {
	if points < 1 || points%2 == 0 {
		return nil, validate.Invalid("points", "must be a positive odd number (got %d)", points)
	}
	half := points / 2
	axis := make([]float64, points)
	for k := 0; k < points; k++ {
		if k == half {
			axis[k] = center
			continue
		}
		axis[k] = center + float64(k-half)*step
	}
	for k := 1; k < points; k++ {
		if !(axis[k] > axis[k-1]) {
			return nil, validate.Invalid("step", "%v is too small to separate axis values around %v", step, center)
		}
	}
	return axis, nil
}

// BuildGrid values the fixed cash-flow series at every (WACC, growth) pair.
// The projection is not re-run: only discounting and the terminal value
// depend on the rates. If any pair would diverge the whole grid is rejected
// before a single cell is computed.
func BuildGrid(ctx context.Context, series projection.CashFlowSeries, base *assumption.Assumptions, cfg GridConfig) (*SensitivityGrid, error) {
	if base == nil {
		return nil, &validate.ValidationError{Reason: "base assumptions are required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	waccAxis, err := Axis(base.WACC, cfg.WACCStep, cfg.WACCPoints)
	if err != nil {
		return nil, fmt.Errorf("wacc axis: %w", err)
	}
	growthAxis, err := Axis(base.TerminalGrowthRate, cfg.GrowthStep, cfg.GrowthPoints)
	if err != nil {
		return nil, fmt.Errorf("growth axis: %w", err)
	}

	minWACC, maxGrowth := waccAxis[0], growthAxis[len(growthAxis)-1]
	if minWACC <= maxGrowth {
		return nil, &validate.DivergentModelError{
			WACC:           minWACC,
			TerminalGrowth: maxGrowth,
			Context:        "sensitivity axis",
		}
	}
	if minWACC <= 0 {
		return nil, validate.Invalid("wacc_step", "wacc axis reaches a non-positive discount rate (%v)", minWACC)
	}

	bridge := BridgeFrom(base)
	table := make([][]float64, len(waccAxis))
	for i := range table {
		table[i] = make([]float64, len(growthAxis))
	}

	// Each row writes only its own slice, so rows need no locking.
	fillRow := func(i int) error {
		for j, g := range growthAxis {
			res, err := DiscountAndBridge(series, Rates{WACC: waccAxis[i], TerminalGrowth: g}, bridge)
			if err != nil {
				return fmt.Errorf("cell (wacc %s, growth %s): %w",
					validate.FormatPercent(waccAxis[i]), validate.FormatPercent(g), err)
			}
			table[i][j] = res.IntrinsicValuePerShare
		}
		return nil
	}

	if !cfg.Parallel {
		for i := range waccAxis {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := fillRow(i); err != nil {
				return nil, err
			}
		}
	} else {
		workers := cfg.MaxWorkers
		if workers == 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for i := range waccAxis {
			i := i
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				return fillRow(i)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	return &SensitivityGrid{
		WACCAxis:   waccAxis,
		GrowthAxis: growthAxis,
		Table:      table,
	}, nil
}
