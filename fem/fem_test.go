package fem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/mesh1D"
)

func TestQuadrature(t *testing.T) {
	q := NewQuadrature(3)
	var sum, x4 float64
	for i, xi := range q.Xi {
		sum += q.W[i]
		x4 += q.W[i] * math.Pow(xi, 4)
	}
	assert.InDelta(t, 1., sum, 1.e-14)
	assert.InDelta(t, 0.2, x4, 1.e-14)
	pts := q.Cell(2, 4)
	var length float64
	for _, qp := range pts {
		length += qp.W
		assert.InDelta(t, 1., qp.N[0]+qp.N[1], 1.e-14)
		assert.InDelta(t, 0., qp.DN[0]+qp.DN[1], 1.e-14)
	}
	assert.InDelta(t, 2., length, 1.e-14)
}

func TestFunction(t *testing.T) {
	m, _ := mesh1D.NewUniform(0, 1, 4)
	f := Interpolate(m, func(x float64) float64 { return x * x })
	{ // nodal values and linear interpolation between them
		assert.InDelta(t, 0.0625, f.Values[1], 1.e-14)
		assert.InDelta(t, 0.5*(0.0625+0.25), f.Eval(0.375), 1.e-14)
		assert.InDelta(t, 1., f.Eval(1), 1.e-14)
		assert.InDelta(t, (0.25-0.0625)/0.25, f.CellGradient(1), 1.e-14)
	}
	{ // Transfer onto a refinement reproduces the field everywhere
		markers := []bool{false, true, false, true}
		R, err := m.Refine(markers)
		require.NoError(t, err)
		fR := f.Transfer(R)
		assert.Equal(t, R.NumVertices(), len(fR.Values))
		for _, x := range []float64{0.1, 0.2, 0.3, 0.55, 0.6, 0.9} {
			assert.InDelta(t, f.Eval(x), fR.Eval(x), 1.e-14)
		}
		// and coming back to the coarse mesh recovers the original values
		back := fR.Transfer(m)
		assert.InDeltaSlice(t, f.Values, back.Values, 1.e-14)
	}
	{ // In place arithmetic
		g := f.Copy().Scale(2).AddScaled(-1, f)
		assert.InDeltaSlice(t, f.Values, g.Values, 1.e-14)
		other := NewFunction(m.RefineUniform())
		assert.Panics(t, func() { g.AddScaled(1, other) })
	}
}

func TestGradientRecovery(t *testing.T) {
	m, _ := mesh1D.NewUniform(-1, 1, 16)
	solver := &linsolve.BlockTridiagonal{BlockSize: 1}
	{ // A linear field has an exactly recoverable gradient
		f := Interpolate(m, func(x float64) float64 { return 3*x - 1 })
		g, err := RecoverGradient(f, solver)
		require.NoError(t, err)
		for _, v := range g.Values {
			assert.InDelta(t, 3., v, 1.e-12)
		}
		for _, e := range GradientMismatch(f, g) {
			assert.InDelta(t, 0., e, 1.e-20)
		}
	}
	{ // A curved field gives positive indicators that shrink under refinement
		fn := func(x float64) float64 { return math.Sin(math.Pi * x) }
		f := Interpolate(m, fn)
		g, err := RecoverGradient(f, solver)
		require.NoError(t, err)
		eta := GradientMismatch(f, g)
		var coarse float64
		for _, e := range eta {
			assert.GreaterOrEqual(t, e, 0.)
			coarse += e
		}
		fine := Interpolate(m.RefineUniform(), fn)
		gf, err := RecoverGradient(fine, solver)
		require.NoError(t, err)
		var fineSum float64
		for _, e := range GradientMismatch(fine, gf) {
			fineSum += e
		}
		assert.Less(t, fineSum, coarse)
	}
}

func TestErrors(t *testing.T) {
	m, _ := mesh1D.NewUniform(0, 1, 8)
	lin := func(x float64) float64 { return 2*x + 1 }
	f := Interpolate(m, lin)
	assert.InDelta(t, 0., L2Error(f, lin), 1.e-14)
	assert.InDelta(t, 0., H1SemiError(f, func(float64) float64 { return 2 }), 1.e-13)
	// Constant offset of one on a unit interval
	assert.InDelta(t, 1., L2Error(f, func(x float64) float64 { return 2 * x }), 1.e-13)
}

func TestEAFE(t *testing.T) {
	{ // Bernoulli identities
		assert.Equal(t, 1., Bernoulli(0))
		for _, x := range []float64{-30, -2, -1.e-9, 1.e-9, 0.5, 3, 40} {
			assert.InDelta(t, x, Bernoulli(-x)-Bernoulli(x), 1.e-9*math.Max(1, math.Abs(x)))
			assert.Greater(t, Bernoulli(x), 0.)
		}
		assert.InDelta(t, 1000., Bernoulli(-1000), 1.e-9)
		assert.Equal(t, 0., Bernoulli(1000))
	}
	{ // Zero drift is the P1 stiffness
		L := EAFELocal(2, 0.5, 0, 1, 1)
		assert.InDelta(t, 4., L[0][0], 1.e-14)
		assert.InDelta(t, -4., L[0][1], 1.e-14)
		assert.InDelta(t, -4., L[1][0], 1.e-14)
		assert.InDelta(t, 4., L[1][1], 1.e-14)
	}
	{ // Columns sum to zero and the equilibrium profile carries no flux
		var (
			psi0, psi1 = 0.3, 2.1
			L          = EAFELocal(1.5, 0.1, psi1-psi0, 1, 1)
			w0, w1     = math.Exp(-psi0), math.Exp(-psi1)
		)
		assert.InDelta(t, 0., L[0][0]+L[1][0], 1.e-12)
		assert.InDelta(t, 0., L[0][1]+L[1][1], 1.e-12)
		assert.InDelta(t, 0., L[0][0]*w0+L[0][1]*w1, 1.e-12)
	}
}
