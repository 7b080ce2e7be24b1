// Package adapt marks cells from an a posteriori error indicator and drives
// refinement until the indicator is below tolerance or a budget is spent.
package adapt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrCannotRefine is wrapped by State.Refine when the marked cells are
// already at the resolution limit. RefineUntilConverged treats it as a
// budget stop.
var ErrCannotRefine = errors.New("marked cells cannot be refined further")

type Indicator uint8

const (
	Entropy Indicator = iota
	ElectricField
)

var IndicatorNames = map[string]Indicator{
	"entropy":        Entropy,
	"electric-field": ElectricField,
}

func NewIndicator(label string) (ind Indicator, err error) {
	var ok bool
	if ind, ok = IndicatorNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown error indicator %q", label)
	}
	return
}

func (ind Indicator) String() string {
	for k, v := range IndicatorNames {
		if v == ind {
			return k
		}
	}
	return "unknown"
}

// Threshold is the per cell tolerance actually applied for the indicator,
// the electric field indicator marks against half the tolerance.
func (ind Indicator) Threshold(tol float64) float64 {
	if ind == ElectricField {
		return tol / 2
	}
	return tol
}

// State is a mesh together with every field living on it.
type State interface {
	NumCells() int
	// Indicators returns one non-negative value per cell.
	Indicators(kind Indicator) ([]float64, error)
	// Refine bisects the marked cells and interpolates every field onto the
	// new mesh. The receiver is not modified.
	Refine(markers []bool) (State, error)
}

// MarkCells flags the cells whose indicator is strictly greater than the
// threshold. A state with more than maxCells cells (maxCells > 0) is not
// examined and reports no marks.
func MarkCells(s State, kind Indicator, tol float64, maxCells int) (markers []bool, count int, err error) {
	if maxCells > 0 && s.NumCells() > maxCells {
		return
	}
	var (
		eta       []float64
		threshold = kind.Threshold(tol)
	)
	if eta, err = s.Indicators(kind); err != nil {
		return
	}
	if len(eta) != s.NumCells() {
		err = fmt.Errorf("indicator has %d values for %d cells", len(eta), s.NumCells())
		return
	}
	markers = make([]bool, len(eta))
	for k, e := range eta {
		if e > threshold {
			markers[k] = true
			count++
		}
	}
	return
}

// Params bound a refinement pass. MaxDepth is the largest number of
// refinement levels applied, MaxCells (when positive) stops refinement once
// the mesh has more cells. MaxGrowth (when positive) does the same for
// MaxGrowth times the cell count the pass started from.
type Params struct {
	Indicator Indicator
	Tol       float64
	MaxCells  int
	MaxDepth  int
	MaxGrowth float64
}

func (p Params) Validate() error {
	if !(p.Tol > 0) {
		return fmt.Errorf("refinement tolerance must be positive, have %v", p.Tol)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("refinement depth must be non-negative, have %d", p.MaxDepth)
	}
	if p.MaxCells < 0 {
		return fmt.Errorf("cell budget must be non-negative, have %d", p.MaxCells)
	}
	if p.MaxGrowth != 0 && !(p.MaxGrowth >= 1) {
		return fmt.Errorf("mesh growth factor must be 0 or at least 1, have %v", p.MaxGrowth)
	}
	return nil
}

// CellLimit is the cell budget of a pass starting from cells cells, 0 when
// unlimited.
func (p Params) CellLimit(cells int) (limit int) {
	limit = p.MaxCells
	if p.MaxGrowth > 0 {
		g := int(math.Floor(p.MaxGrowth * float64(cells)))
		if limit == 0 || g < limit {
			limit = g
		}
	}
	return
}

type Result struct {
	State  State
	Levels int
	Marked []int // cells marked at each level
	Capped bool  // stopped by a budget or the resolution limit with cells still marked
}

// RefineUntilConverged refines s level by level until no cell is marked,
// the cell budget is exceeded, or MaxDepth levels have been applied. Marked
// cells that cannot be refined further end the pass as Capped.
func RefineUntilConverged(ctx context.Context, s State, p Params) (r Result, err error) {
	if err = p.Validate(); err != nil {
		return
	}
	r.State = s
	limit := p.CellLimit(s.NumCells())
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		if limit > 0 && r.State.NumCells() > limit {
			r.Capped = true
			return
		}
		var (
			markers []bool
			count   int
			next    State
		)
		if markers, count, err = MarkCells(r.State, p.Indicator, p.Tol, limit); err != nil {
			return
		}
		if count == 0 {
			return
		}
		if r.Levels >= p.MaxDepth {
			r.Capped = true
			return
		}
		if next, err = r.State.Refine(markers); errors.Is(err, ErrCannotRefine) {
			r.Capped, err = true, nil
			return
		}
		if err != nil {
			err = fmt.Errorf("refinement level %d: %w", r.Levels+1, err)
			return
		}
		r.State = next
		r.Levels++
		r.Marked = append(r.Marked, count)
	}
}
