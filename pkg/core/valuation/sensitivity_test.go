package valuation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"dcf_valuation/pkg/core/validate"
)

func TestAxis_SymmetricAndIncreasing(t *testing.T) {
	tests := []struct {
		name     string
		center   float64
		step     float64
		points   int
		expected []float64
	}{
		{"Default WACC", 9, 1, 5, []float64{7, 8, 9, 10, 11}},
		{"Default growth", 2.5, 0.5, 5, []float64{1.5, 2, 2.5, 3, 3.5}},
		{"Single point", 9, 1, 1, []float64{9}},
		{"Seven points", 10, 0.25, 7, []float64{9.25, 9.5, 9.75, 10, 10.25, 10.5, 10.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			axis, err := Axis(tt.center, tt.step, tt.points)
			if err != nil {
				t.Fatalf("Axis failed: %v", err)
			}
			if len(axis) != len(tt.expected) {
				t.Fatalf("len = %d, want %d", len(axis), len(tt.expected))
			}
			for i := range axis {
				if math.Abs(axis[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("axis[%d] = %v, want %v", i, axis[i], tt.expected[i])
				}
				if i > 0 && !(axis[i] > axis[i-1]) {
					t.Errorf("axis not strictly increasing at %d", i)
				}
			}
			if axis[len(axis)/2] != tt.center {
				t.Errorf("center = %v, want exactly %v", axis[len(axis)/2], tt.center)
			}
		})
	}
}

func TestAxis_Rejects(t *testing.T) {
	if _, err := Axis(9, 1, 4); validate.KindOf(err) != validate.KindValidation {
		t.Errorf("even points: err = %v", err)
	}
	if _, err := Axis(9, 1, 0); validate.KindOf(err) != validate.KindValidation {
		t.Errorf("zero points: err = %v", err)
	}
	if _, err := Axis(1e20, 1e-10, 5); validate.KindOf(err) != validate.KindValidation {
		t.Errorf("indistinguishable step: err = %v", err)
	}
}

func TestBuildGrid_BaseScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := baseCase()
	series := mustProject(t, a)
	base, err := Value(series, a)
	if err != nil {
		t.Fatal(err)
	}

	grid, err := BuildGrid(context.Background(), series, a, DefaultGridConfig())
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	// Shape: rows = WACC, columns = growth
	if len(grid.Table) != len(grid.WACCAxis) {
		t.Fatalf("rows = %d, want %d", len(grid.Table), len(grid.WACCAxis))
	}
	for i, row := range grid.Table {
		if len(row) != len(grid.GrowthAxis) {
			t.Fatalf("row %d has %d cols, want %d", i, len(row), len(grid.GrowthAxis))
		}
	}
	if len(grid.Table) != 5 || len(grid.Table[0]) != 5 {
		t.Fatalf("grid is %dx%d, want 5x5", len(grid.Table), len(grid.Table[0]))
	}

	// Center consistency
	ci, cj := grid.Center()
	if grid.WACCAxis[ci] != a.WACC || grid.GrowthAxis[cj] != a.TerminalGrowthRate {
		t.Fatalf("center axis values = (%v, %v), want (%v, %v)", grid.WACCAxis[ci], grid.GrowthAxis[cj], a.WACC, a.TerminalGrowthRate)
	}
	center := grid.Table[ci][cj]
	if math.Abs(center-base.IntrinsicValuePerShare) > 1e-9*math.Abs(base.IntrinsicValuePerShare) {
		t.Errorf("center cell = %v, base = %v", center, base.IntrinsicValuePerShare)
	}
}

func TestBuildGrid_RowsAreWACCColumnsAreGrowth(t *testing.T) {
	a := baseCase()
	series := mustProject(t, a)
	grid, err := BuildGrid(context.Background(), series, a, DefaultGridConfig())
	if err != nil {
		t.Fatal(err)
	}

	for i, w := range grid.WACCAxis {
		for j, g := range grid.GrowthAxis {
			res, err := DiscountAndBridge(series, Rates{WACC: w, TerminalGrowth: g}, BridgeFrom(a))
			if err != nil {
				t.Fatal(err)
			}
			if grid.Table[i][j] != res.IntrinsicValuePerShare {
				t.Errorf("Table[%d][%d] = %v, want value at wacc %v / growth %v = %v", i, j, grid.Table[i][j], w, g, res.IntrinsicValuePerShare)
			}
		}
	}

	// Down a column WACC rises so value falls; along a row growth rises so value rises.
	for i := 1; i < len(grid.Table); i++ {
		if !(grid.Table[i][0] < grid.Table[i-1][0]) {
			t.Errorf("column 0 not decreasing at row %d", i)
		}
	}
	for j := 1; j < len(grid.Table[0]); j++ {
		if !(grid.Table[0][j] > grid.Table[0][j-1]) {
			t.Errorf("row 0 not increasing at col %d", j)
		}
	}
}

func TestBuildGrid_ParallelMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := baseCase()
	series := mustProject(t, a)

	seqCfg := DefaultGridConfig()
	seqCfg.Parallel = false
	seqCfg.WACCPoints, seqCfg.GrowthPoints = 9, 7
	seqCfg.WACCStep, seqCfg.GrowthStep = 0.5, 0.25

	parCfg := seqCfg
	parCfg.Parallel = true
	parCfg.MaxWorkers = 3

	seq, err := BuildGrid(context.Background(), series, a, seqCfg)
	if err != nil {
		t.Fatal(err)
	}
	par, err := BuildGrid(context.Background(), series, a, parCfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seq, par); diff != "" {
		t.Errorf("parallel grid differs from sequential (-seq +par):\n%s", diff)
	}
}

func TestBuildGrid_DivergentAxisFailsFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := baseCase()
	a.WACC = 4
	a.TerminalGrowthRate = 2.5
	series := mustProject(t, a)

	// wacc axis 2..6, growth axis 1.5..3.5: 2 <= 3.5 diverges
	grid, err := BuildGrid(context.Background(), series, a, DefaultGridConfig())
	var de *validate.DivergentModelError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DivergentModelError", err)
	}
	if grid != nil {
		t.Errorf("grid returned alongside error")
	}
	if de.WACC != 2 || de.TerminalGrowth != 3.5 {
		t.Errorf("reported pair = (%v, %v), want (2, 3.5)", de.WACC, de.TerminalGrowth)
	}
}

func TestBuildGrid_NonPositiveWACCAxis(t *testing.T) {
	a := baseCase()
	a.WACC = 1.5
	a.TerminalGrowthRate = -5
	series := mustProject(t, a)

	_, err := BuildGrid(context.Background(), series, a, DefaultGridConfig())
	if validate.KindOf(err) != validate.KindValidation {
		t.Errorf("err = %v, want validation error for wacc axis below zero", err)
	}
}

func TestBuildGrid_InvalidConfig(t *testing.T) {
	a := baseCase()
	series := mustProject(t, a)
	cfg := DefaultGridConfig()
	cfg.GrowthPoints = 4
	_, err := BuildGrid(context.Background(), series, a, cfg)
	if validate.FieldOf(err) != "growth_points" {
		t.Errorf("err = %v, want growth_points validation error", err)
	}
}

func TestGridConfig_MinStep(t *testing.T) {
	tests := []struct {
		name      string
		waccStep  float64
		growStep  float64
		wantField string
	}{
		{"Smallest allowed", MinStep, MinStep, ""},
		{"WACC step below minimum", 0.004, 0.5, "wacc_step"},
		{"Growth step below minimum", 1, 0.001, "growth_step"},
		{"Zero step", 0, 0.5, "wacc_step"},
		{"NaN step", 1, math.NaN(), "growth_step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGridConfig()
			cfg.WACCStep, cfg.GrowthStep = tt.waccStep, tt.growStep
			err := cfg.Validate()
			if got := validate.FieldOf(err); got != tt.wantField {
				t.Errorf("Validate() = %v, want field %q", err, tt.wantField)
			}
		})
	}
}

func TestBuildGrid_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := baseCase()
	series := mustProject(t, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildGrid(ctx, series, a, DefaultGridConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildGrid_Deterministic(t *testing.T) {
	a := baseCase()
	series := mustProject(t, a)
	first, _ := BuildGrid(context.Background(), series, a, DefaultGridConfig())
	for i := 0; i < 10; i++ {
		again, _ := BuildGrid(context.Background(), series, a, DefaultGridConfig())
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}
