package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DOK accumulates finite element contributions in dictionary-of-keys form,
// it is converted to CSR once assembly is complete.
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int, name ...string) (R *DOK) {
	R = &DOK{
		M:    sparse.NewDOK(nr, nc),
		name: "unnamed - hint: pass a variable name to NewDOK()",
	}
	if len(name) != 0 {
		R.name = name[0]
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m *DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m *DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m *DOK) T() mat.Matrix       { return m.M.T() }

// Add accumulates val into entry (i,j).
func (m *DOK) Add(i, j int, val float64) {
	m.checkWritable()
	if val == 0 {
		return
	}
	m.M.Set(i, j, m.M.At(i, j)+val)
}

// AddBlock accumulates the dense local matrix L into the rows/cols given by dofs.
func (m *DOK) AddBlock(dofs []int, L [][]float64) {
	if len(L) != len(dofs) {
		panic(fmt.Errorf("local matrix has %d rows for %d dofs", len(L), len(dofs)))
	}
	for a, i := range dofs {
		for b, j := range dofs {
			m.Add(i, j, L[a][b])
		}
	}
}

// SetIdentityRow zeroes row i and places a one on the diagonal, this is how
// Dirichlet conditions are imposed on a Jacobian.
func (m *DOK) SetIdentityRow(i int) {
	m.checkWritable()
	_, nc := m.Dims()
	for j := 0; j < nc; j++ {
		if m.M.At(i, j) != 0 {
			m.M.Set(i, j, 0)
		}
	}
	m.M.Set(i, i, 1)
}

// ToCSR converts the assembled matrix, no further writes are accepted.
func (m *DOK) ToCSR() *sparse.CSR {
	m.readOnly = true
	return m.M.ToCSR()
}

func (m *DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

// NonZeroDoer is satisfied by the sparse formats, it lets solvers walk the
// stored entries without probing every (i,j).
type NonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

// Bandwidth returns the largest |I-J| over the stored entries of A, where I
// and J are the block indices i/blockSize and j/blockSize.
func Bandwidth(A mat.Matrix, blockSize int) (bw int) {
	var (
		nr, nc = A.Dims()
	)
	update := func(i, j int, v float64) {
		if v == 0 {
			return
		}
		d := i/blockSize - j/blockSize
		if d < 0 {
			d = -d
		}
		if d > bw {
			bw = d
		}
	}
	if nz, ok := A.(NonZeroDoer); ok {
		nz.DoNonZero(update)
		return
	}
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			update(i, j, A.At(i, j))
		}
	}
	return
}
