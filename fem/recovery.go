package fem

import (
	"fmt"
	"math"

	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/utils"
	"gonum.org/v1/gonum/mat"
)

// RecoverGradient projects the piecewise constant derivative of f onto P1 in
// the L2 sense, M g = (f', N_i), using the given solver for the mass matrix.
func RecoverGradient(f *Function, solver linsolve.Solver) (g *Function, err error) {
	var (
		m  = f.Mesh
		nv = m.NumVertices()
		M  = utils.NewDOK(nv, nv, "mass")
		b  = mat.NewVecDense(nv, nil)
	)
	for k := 0; k < m.NumCells(); k++ {
		var (
			h  = m.CellLength(k)
			df = f.CellGradient(k)
		)
		M.AddBlock([]int{k, k + 1}, [][]float64{
			{h / 3, h / 6},
			{h / 6, h / 3},
		})
		b.SetVec(k, b.AtVec(k)+0.5*h*df)
		b.SetVec(k+1, b.AtVec(k+1)+0.5*h*df)
	}
	var x *mat.VecDense
	if x, err = solver.Solve(M.ToCSR(), b); err != nil {
		err = fmt.Errorf("gradient recovery: %w", err)
		return
	}
	g = NewFunction(m)
	for i := range g.Values {
		g.Values[i] = x.AtVec(i)
	}
	return
}

// GradientMismatch returns, per cell, the integral of (g - f')^2 where g is a
// recovered gradient of f on the same mesh.
func GradientMismatch(f, g *Function) (eta []float64) {
	var (
		m = f.Mesh
		q = NewQuadrature(3)
	)
	eta = make([]float64, m.NumCells())
	for k := range eta {
		df := f.CellGradient(k)
		xl, xr := m.Cell(k)
		for _, qp := range q.Cell(xl, xr) {
			d := qp.Value(g.Values[k], g.Values[k+1]) - df
			eta[k] += qp.W * d * d
		}
	}
	return
}

// L2Error integrates (f - exact)^2 with a five point rule per cell and
// returns the square root.
func L2Error(f *Function, exact func(x float64) float64) float64 {
	var (
		m   = f.Mesh
		q   = NewQuadrature(5)
		sum float64
	)
	for k := 0; k < m.NumCells(); k++ {
		xl, xr := m.Cell(k)
		for _, qp := range q.Cell(xl, xr) {
			d := qp.Value(f.Values[k], f.Values[k+1]) - exact(qp.X)
			sum += qp.W * d * d
		}
	}
	return math.Sqrt(sum)
}

// H1SemiError is the L2 norm of the derivative error.
func H1SemiError(f *Function, exactDerivative func(x float64) float64) float64 {
	var (
		m   = f.Mesh
		q   = NewQuadrature(5)
		sum float64
	)
	for k := 0; k < m.NumCells(); k++ {
		df := f.CellGradient(k)
		xl, xr := m.Cell(k)
		for _, qp := range q.Cell(xl, xr) {
			d := df - exactDerivative(qp.X)
			sum += qp.W * d * d
		}
	}
	return math.Sqrt(sum)
}
