// Package fem holds continuous piecewise linear (P1) functions on interval
// meshes and the element level tools used to assemble PNP systems.
package fem

import (
	"fmt"

	"github.com/notargets/gopnp/mesh1D"
)

// Function is a P1 field, Values[k] is the nodal value at Mesh.VX[k].
type Function struct {
	Mesh   *mesh1D.Mesh
	Values []float64
}

func NewFunction(m *mesh1D.Mesh) *Function {
	return &Function{
		Mesh:   m,
		Values: make([]float64, m.NumVertices()),
	}
}

// Interpolate returns the nodal interpolant of f.
func Interpolate(m *mesh1D.Mesh, f func(x float64) float64) (F *Function) {
	F = NewFunction(m)
	for i, x := range m.VX {
		F.Values[i] = f(x)
	}
	return
}

func (f *Function) Copy() *Function {
	return &Function{
		Mesh:   f.Mesh,
		Values: append([]float64(nil), f.Values...),
	}
}

// Eval evaluates the field at x by linear interpolation within its cell.
func (f *Function) Eval(x float64) float64 {
	var (
		k      = f.Mesh.Locate(x)
		xl, xr = f.Mesh.Cell(k)
		xi     = (x - xl) / (xr - xl)
	)
	return (1-xi)*f.Values[k] + xi*f.Values[k+1]
}

// CellGradient is the constant derivative of the field on cell k.
func (f *Function) CellGradient(k int) float64 {
	return (f.Values[k+1] - f.Values[k]) / f.Mesh.CellLength(k)
}

// Transfer interpolates the field onto another mesh covering the same
// interval. On a refinement of f.Mesh the result reproduces f exactly.
func (f *Function) Transfer(m *mesh1D.Mesh) *Function {
	return Interpolate(m, f.Eval)
}

// Scale multiplies the field in place.
func (f *Function) Scale(a float64) *Function {
	for i := range f.Values {
		f.Values[i] *= a
	}
	return f
}

// AddScaled computes f += a*g in place, g must live on the same mesh.
func (f *Function) AddScaled(a float64, g *Function) *Function {
	if len(g.Values) != len(f.Values) {
		panic(fmt.Errorf("fields live on different meshes: %d vs %d vertices",
			len(f.Values), len(g.Values)))
	}
	for i := range f.Values {
		f.Values[i] += a * g.Values[i]
	}
	return f
}
