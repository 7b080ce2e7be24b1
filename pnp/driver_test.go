package pnp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/newton"
)

func solveOnce(t *testing.T, p Params) (rep Report, d *Driver) {
	p.MaxLevels = 0
	d, err := NewDriver(p)
	require.NoError(t, err)
	rep, err = d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Levels, 1)
	return
}

func TestManufacturedConvergence(t *testing.T) {
	var (
		errs []float64
	)
	for _, K := range []int{16, 32, 64} {
		p := DefaultParams()
		p.InitialCells = K
		rep, _ := solveOnce(t, p)
		rec := rep.Levels[0]
		assert.Equal(t, newton.Converged, rec.State)
		assert.Equal(t, K, rec.Cells)
		assert.LessOrEqual(t, rec.RelativeResidual, p.Newton.RelativeTol)
		errs = append(errs, rec.L2Error)
	}
	// Second order in L2
	for i := 1; i < len(errs); i++ {
		rate := math.Log2(errs[i-1] / errs[i])
		assert.Greater(t, rate, 1.7)
	}
	{ // The edge averaged Jacobian converges to the same discrete solution
		p := DefaultParams()
		p.InitialCells = 16
		p.Newton.MaxIterations = 50
		rg, _ := solveOnce(t, p)
		p.UseEAFE = true
		re, _ := solveOnce(t, p)
		assert.True(t, re.Converged())
		for j := range rg.Fields {
			assert.InDeltaSlice(t, rg.Fields[j].Values, re.Fields[j].Values, 1.e-6)
		}
	}
}

func TestOtherBenchmarks(t *testing.T) {
	{ // Equilibrium: Newton removes the perturbation entirely
		p := DefaultParams()
		p.Benchmark.Kind = Equilibrium
		p.InitialCells = 16
		rep, _ := solveOnce(t, p)
		assert.True(t, rep.Converged())
		assert.Greater(t, rep.Levels[0].NewtonIterations, 0)
		assert.Less(t, rep.Levels[0].L2Error, 1.e-6)
	}
	{ // Linear junction: no exact solution, the solution keeps its boundary data
		p := DefaultParams()
		p.Benchmark.Kind = Linear
		p.Newton.MaxIterations = 50
		rep, d := solveOnce(t, p)
		assert.True(t, rep.Converged())
		assert.True(t, math.IsNaN(rep.Levels[0].L2Error))
		last := rep.Mesh.NumVertices() - 1
		for j, f := range rep.Fields {
			assert.Equal(t, d.Benchmark.Left[j], f.Values[0])
			assert.Equal(t, d.Benchmark.Right[j], f.Values[last])
		}
	}
}

func TestAdaptiveRun(t *testing.T) {
	p := DefaultParams()
	p.InitialCells = 8
	p.Refine.Tol = 0.05
	p.Refine.MaxDepth = 2
	p.MaxLevels = 3
	d, err := NewDriver(p)
	require.NoError(t, err)
	var (
		iterations, levels int
	)
	d.OnIteration = append(d.OnIteration, func(stage Stage, st *newton.Status, pr *Problem, F []*fem.Function) {
		iterations++
		assert.Equal(t, 0, stage.Step)
		assert.Len(t, F, 3)
		assert.Equal(t, pr.Mesh.NumVertices(), len(F[0].Values))
	})
	d.OnLevel = append(d.OnLevel, func(rec LevelRecord, pr *Problem, F []*fem.Function) {
		assert.Equal(t, levels, rec.Level)
		assert.Equal(t, rec.Cells, pr.Mesh.NumCells())
		levels++
	})
	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rep.Levels), 2)
	assert.LessOrEqual(t, len(rep.Levels), p.MaxLevels+1)
	assert.Equal(t, len(rep.Levels), levels)
	assert.Greater(t, rep.Levels[0].RefinementLevels, 0)
	assert.LessOrEqual(t, rep.Levels[0].RefinementLevels, p.Refine.MaxDepth)
	var total int
	for i, rec := range rep.Levels {
		total += rec.NewtonIterations
		if i > 0 {
			assert.Greater(t, rec.Cells, rep.Levels[i-1].Cells)
		}
	}
	assert.Equal(t, total, iterations)
	first, last := rep.Levels[0], rep.Levels[len(rep.Levels)-1]
	assert.Less(t, last.L2Error, first.L2Error)
	assert.Less(t, last.H1Error, first.H1Error)
	assert.Equal(t, last.Cells, rep.Mesh.NumCells())
	assert.False(t, math.IsNaN(last.Energy))
}

func TestTimeStepping(t *testing.T) {
	p := DefaultParams()
	p.Benchmark.Kind = Equilibrium
	p.InitialCells = 16
	p.TimeStep = 0.05
	p.FinalTime = 0.5
	p.MaxLevels = 1
	p.Refine.MaxGrowth = 1.5
	d, err := NewDriver(p)
	require.NoError(t, err)
	var stages []Stage
	d.OnLevel = append(d.OnLevel, func(rec LevelRecord, pr *Problem, F []*fem.Function) {
		stages = append(stages, rec.Stage)
		assert.Equal(t, p.TimeStep, pr.TimeStep)
		require.Len(t, pr.Previous, 3)
		assert.Equal(t, pr.Mesh.NumVertices(), len(pr.Previous[1].Values))
	})
	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Converged())
	require.Len(t, stages, len(rep.Levels))
	steps := map[int]bool{}
	for i, rec := range rep.Levels {
		assert.Equal(t, newton.Converged, rec.State)
		assert.InDelta(t, float64(rec.Step)*p.TimeStep, rec.Time, 1.e-12)
		steps[rec.Step] = true
		if i > 0 && rec.Step == rep.Levels[i-1].Step {
			assert.Equal(t, rep.Levels[i-1].Level+1, rec.Level)
			// a pass stops once past 1.5 times its start, one bisection overshoots at most twice
			assert.LessOrEqual(t, rec.Cells, 3*rep.Levels[i-1].Cells)
		}
	}
	assert.Len(t, steps, 10)
	assert.True(t, steps[1] && steps[10])
	// Backward Euler relaxes the perturbation towards equilibrium
	first, last := rep.Levels[0], rep.Levels[len(rep.Levels)-1]
	assert.Less(t, last.L2Error, first.L2Error)
	{
		p.FinalTime = 0.01
		_, err = NewDriver(p)
		assert.Error(t, err)
		p.TimeStep = -1
		_, err = NewDriver(p)
		assert.Error(t, err)
	}
}

func TestRunFailures(t *testing.T) {
	{ // A linear solver that cannot converge aborts the run
		p := DefaultParams()
		p.Linear = linsolve.Params{Method: linsolve.BiCGStabMethod, Tol: 1.e-14, MaxIterations: 1}
		d, err := NewDriver(p)
		require.NoError(t, err)
		rep, err := d.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, linsolve.ErrLinearSolverFailure))
		var se *linsolve.SolveError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, linsolve.StatusMaxIterations, se.Status)
		require.Len(t, rep.Levels, 1)
		assert.Equal(t, newton.Diverged, rep.Levels[0].State)
		assert.False(t, rep.Converged())
	}
	{ // Iteration cap is not fatal
		p := DefaultParams()
		p.Newton.MaxIterations = 1
		p.MaxLevels = 1
		p.Refine.Tol = 0.05
		d, err := NewDriver(p)
		require.NoError(t, err)
		rep, err := d.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, rep.Levels, 2)
		assert.Equal(t, newton.MaxIterationsReached, rep.Levels[0].State)
		assert.False(t, rep.Converged())
	}
	{
		d, err := NewDriver(DefaultParams())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = d.Run(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
	}
	{
		p := DefaultParams()
		p.InitialCells = 0
		_, err := NewDriver(p)
		assert.Error(t, err)
		p = DefaultParams()
		p.Refine.MaxDepth = -1
		_, err = NewDriver(p)
		assert.Error(t, err)
	}
}
