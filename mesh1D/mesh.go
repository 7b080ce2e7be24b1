package mesh1D

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCellTooSmall is returned by Refine when none of the marked cells has a
// representable midpoint.
var ErrCellTooSmall = errors.New("marked cells are too small to bisect")

// Mesh is a conforming partition of an interval into cells. Vertex k and k+1
// bound cell k, the vertex coordinates are strictly increasing.
type Mesh struct {
	VX []float64
}

func NewUniform(xmin, xmax float64, K int) (m *Mesh, err error) {
	if K < 1 {
		err = fmt.Errorf("number of cells must be positive, have %d", K)
		return
	}
	if !(xmax > xmin) {
		err = fmt.Errorf("invalid interval [%v, %v]", xmin, xmax)
		return
	}
	var (
		VX = make([]float64, K+1)
		h  = (xmax - xmin) / float64(K)
	)
	for i := 0; i < K; i++ {
		VX[i] = xmin + float64(i)*h
	}
	VX[K] = xmax
	m = &Mesh{VX: VX}
	return
}

// NewFromVertices copies the coordinates, they must be strictly increasing.
func NewFromVertices(VX []float64) (m *Mesh, err error) {
	if len(VX) < 2 {
		err = fmt.Errorf("a mesh needs at least two vertices, have %d", len(VX))
		return
	}
	for i := 1; i < len(VX); i++ {
		if !(VX[i] > VX[i-1]) {
			err = fmt.Errorf("vertices must be strictly increasing: VX[%d] = %v, VX[%d] = %v",
				i-1, VX[i-1], i, VX[i])
			return
		}
	}
	m = &Mesh{VX: append([]float64(nil), VX...)}
	return
}

func (m *Mesh) NumCells() int    { return len(m.VX) - 1 }
func (m *Mesh) NumVertices() int { return len(m.VX) }
func (m *Mesh) XMin() float64    { return m.VX[0] }
func (m *Mesh) XMax() float64    { return m.VX[len(m.VX)-1] }

// Cell returns the end points of cell k.
func (m *Mesh) Cell(k int) (xl, xr float64) {
	return m.VX[k], m.VX[k+1]
}

func (m *Mesh) CellLength(k int) float64 {
	return m.VX[k+1] - m.VX[k]
}

func (m *Mesh) MinCellLength() (hmin float64) {
	hmin = m.CellLength(0)
	for k := 1; k < m.NumCells(); k++ {
		if h := m.CellLength(k); h < hmin {
			hmin = h
		}
	}
	return
}

// Locate returns the cell containing x. Points on an interior vertex belong
// to the cell on the right, points outside the mesh to the nearest end cell.
func (m *Mesh) Locate(x float64) (k int) {
	k = sort.SearchFloat64s(m.VX, x)
	if k < len(m.VX) && m.VX[k] == x {
		k++
	}
	k--
	switch {
	case k < 0:
		k = 0
	case k > m.NumCells()-1:
		k = m.NumCells() - 1
	}
	return
}

// Refine bisects every marked cell and returns the new mesh, the receiver is
// left untouched. Unmarked cells are copied exactly. A marked cell whose
// midpoint rounds onto one of its end points is left whole, when that holds
// for every marked cell the result is ErrCellTooSmall.
func (m *Mesh) Refine(markers []bool) (R *Mesh, err error) {
	if len(markers) != m.NumCells() {
		err = fmt.Errorf("marker count %d does not match cell count %d", len(markers), m.NumCells())
		return
	}
	var (
		nMarked, nSplit int
	)
	for _, mk := range markers {
		if mk {
			nMarked++
		}
	}
	VX := make([]float64, 0, len(m.VX)+nMarked)
	for k := 0; k < m.NumCells(); k++ {
		VX = append(VX, m.VX[k])
		if !markers[k] {
			continue
		}
		if mid, ok := m.Midpoint(k); ok {
			VX = append(VX, mid)
			nSplit++
		}
	}
	if nMarked != 0 && nSplit == 0 {
		err = fmt.Errorf("%w: %d marked, smallest cell %v", ErrCellTooSmall, nMarked, m.MinCellLength())
		return
	}
	VX = append(VX, m.XMax())
	R = &Mesh{VX: VX}
	return
}

// Midpoint returns the center of cell k, ok is false when it is not strictly
// inside the cell in floating point.
func (m *Mesh) Midpoint(k int) (mid float64, ok bool) {
	mid = 0.5 * (m.VX[k] + m.VX[k+1])
	ok = mid > m.VX[k] && mid < m.VX[k+1]
	return
}

// RefineUniform bisects every cell.
func (m *Mesh) RefineUniform() (R *Mesh) {
	markers := make([]bool, m.NumCells())
	for k := range markers {
		markers[k] = true
	}
	var err error
	if R, err = m.Refine(markers); err != nil {
		R = &Mesh{VX: append([]float64(nil), m.VX...)}
	}
	return
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh1D{cells: %d, [%v, %v], hmin: %8.5e}",
		m.NumCells(), m.XMin(), m.XMax(), m.MinCellLength())
}
