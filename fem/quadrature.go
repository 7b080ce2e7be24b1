package fem

import (
	"gonum.org/v1/gonum/integrate/quad"
)

// Quadrature is a Gauss-Legendre rule on the reference cell [0,1].
type Quadrature struct {
	Xi, W []float64
}

func NewQuadrature(nPts int) (q Quadrature) {
	q = Quadrature{
		Xi: make([]float64, nPts),
		W:  make([]float64, nPts),
	}
	quad.Legendre{}.FixedLocations(q.Xi, q.W, 0, 1)
	return
}

// QuadPoint carries everything an element integrand needs at one point.
type QuadPoint struct {
	X, W   float64    // physical location and weight including the Jacobian
	N, DN  [2]float64 // P1 shape functions and their derivatives
	Xi     float64
	XL, XR float64
}

// Cell maps the rule onto [xl,xr].
func (q Quadrature) Cell(xl, xr float64) (pts []QuadPoint) {
	var (
		h = xr - xl
	)
	pts = make([]QuadPoint, len(q.Xi))
	for i, xi := range q.Xi {
		pts[i] = QuadPoint{
			X:  xl + h*xi,
			W:  h * q.W[i],
			N:  [2]float64{1 - xi, xi},
			DN: [2]float64{-1 / h, 1 / h},
			Xi: xi,
			XL: xl,
			XR: xr,
		}
	}
	return
}

// Value interpolates the two nodal values at the point.
func (qp QuadPoint) Value(v0, v1 float64) float64 {
	return qp.N[0]*v0 + qp.N[1]*v1
}
