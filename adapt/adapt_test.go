package adapt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cellState is a mesh-free State: each cell carries its indicator value and
// bisection divides the value of both children by four. A state with at
// least finest cells refuses to refine.
type cellState struct {
	eta     []float64
	refines *int
	finest  int
}

func (c *cellState) NumCells() int { return len(c.eta) }

func (c *cellState) Indicators(Indicator) ([]float64, error) {
	return append([]float64(nil), c.eta...), nil
}

func (c *cellState) Refine(markers []bool) (State, error) {
	if c.finest > 0 && len(c.eta) >= c.finest {
		return nil, fmt.Errorf("%d cells: %w", len(c.eta), ErrCannotRefine)
	}
	if c.refines != nil {
		*c.refines++
	}
	var eta []float64
	for k, e := range c.eta {
		if markers[k] {
			eta = append(eta, e/4, e/4)
		} else {
			eta = append(eta, e)
		}
	}
	return &cellState{eta: eta, refines: c.refines, finest: c.finest}, nil
}

func TestMarkCells(t *testing.T) {
	s := &cellState{eta: []float64{0.5, 1, 1.5, 2, 0}}
	{ // Strict inequality, a value equal to the tolerance is not marked
		markers, count, err := MarkCells(s, Entropy, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, []bool{false, false, true, true, false}, markers)
	}
	{ // The electric field indicator marks against half the tolerance
		markers, count, err := MarkCells(s, ElectricField, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, []bool{false, true, true, true, false}, markers)
		_, count, _ = MarkCells(s, ElectricField, 2, 0)
		assert.Equal(t, 2, count)
	}
	{ // Over the cell budget nothing is computed or marked
		markers, count, err := MarkCells(s, Entropy, 1, 4)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Nil(t, markers)
		_, count, _ = MarkCells(s, Entropy, 1, 5)
		assert.Equal(t, 2, count)
	}
}

func TestRefineUntilConverged(t *testing.T) {
	ctx := context.Background()
	{ // Nothing marked: the input state comes back unchanged with zero levels
		var refines int
		s := &cellState{eta: []float64{0.1, 0.2}, refines: &refines}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, r.Levels)
		assert.Same(t, s, r.State.(*cellState))
		assert.False(t, r.Capped)
		assert.Equal(t, 0, refines)
	}
	{ // Marks empty out after a number of levels
		s := &cellState{eta: []float64{0.1, 20}}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 10})
		require.NoError(t, err)
		// 20 -> 5 -> 1.25 -> 0.3125
		assert.Equal(t, 3, r.Levels)
		assert.Equal(t, []int{1, 2, 4}, r.Marked)
		assert.Equal(t, 1+8, r.State.NumCells())
		assert.False(t, r.Capped)
	}
	{ // Depth cap terminates a pass that would keep marking
		s := &cellState{eta: []float64{1.e6}}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, r.Levels)
		assert.True(t, r.Capped)
		assert.Equal(t, 4, r.State.NumCells())

		r, err = RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 0})
		require.NoError(t, err)
		assert.Equal(t, 0, r.Levels)
		assert.True(t, r.Capped)
	}
	{ // Cell budget terminates as well and cell counts only grow
		s := &cellState{eta: []float64{1.e6, 1.e6}}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 100, MaxCells: 10})
		require.NoError(t, err)
		assert.True(t, r.Capped)
		assert.Greater(t, r.State.NumCells(), 10)
		assert.Equal(t, 3, r.Levels) // 2 -> 4 -> 8 -> 16
	}
	{ // Growth budget is relative to the cells the pass starts from
		s := &cellState{eta: []float64{1.e6, 1.e6}}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 100, MaxCells: 20})
		require.NoError(t, err)
		assert.Equal(t, 4, r.Levels) // 2 -> 4 -> 8 -> 16 -> 32
		r, err = RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 100, MaxCells: 20, MaxGrowth: 3})
		require.NoError(t, err)
		assert.True(t, r.Capped)
		assert.Equal(t, 2, r.Levels) // 2 -> 4 -> 8 > 6
		assert.Equal(t, 0, Params{}.CellLimit(10))
		assert.Equal(t, 15, Params{MaxGrowth: 1.5}.CellLimit(10))
		assert.Equal(t, 12, Params{MaxCells: 12, MaxGrowth: 1.5}.CellLimit(10))
		assert.Equal(t, 12, Params{MaxCells: 12}.CellLimit(10))
	}
	{ // Cells at the resolution limit end the pass without an error
		s := &cellState{eta: []float64{1.e6}, finest: 4}
		r, err := RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 100})
		require.NoError(t, err)
		assert.True(t, r.Capped)
		assert.Equal(t, 2, r.Levels)
		assert.Equal(t, 4, r.State.NumCells())
	}
	{ // Invalid parameters and cancellation
		s := &cellState{eta: []float64{1}}
		_, err := RefineUntilConverged(ctx, s, Params{Tol: 0, MaxDepth: 1})
		assert.Error(t, err)
		_, err = RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: -1})
		assert.Error(t, err)
		_, err = RefineUntilConverged(ctx, s, Params{Tol: 1, MaxDepth: 1, MaxGrowth: 0.5})
		assert.Error(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = RefineUntilConverged(cctx, s, Params{Tol: 1, MaxDepth: 1})
		assert.True(t, errors.Is(err, context.Canceled))
	}
	{
		ind, err := NewIndicator("Electric-Field")
		require.NoError(t, err)
		assert.Equal(t, ElectricField, ind)
		assert.Equal(t, "entropy", Entropy.String())
		_, err = NewIndicator("residual")
		assert.Error(t, err)
	}
}
