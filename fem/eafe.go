package fem

import "math"

// Bernoulli is B(t) = t/(exp(t)-1) with B(0) = 1.
func Bernoulli(t float64) float64 {
	if t == 0 {
		return 1
	}
	if t > 700 {
		return 0
	}
	return t / math.Expm1(t)
}

// EAFELocal is the edge averaged stiffness of the flux
//
//	J = -alpha (w' + psi' w)
//
// on a cell of length h with psi(xr)-psi(xl) = dpsi. The columns are scaled by
// eta0 and eta1, which is how the log-density Jacobian carries exp(u) at the
// two vertices. With dpsi = 0 and unit eta it is the P1 stiffness alpha/h.
func EAFELocal(alpha, h, dpsi, eta0, eta1 float64) (L [2][2]float64) {
	var (
		c  = alpha / h
		bp = Bernoulli(dpsi)
		bm = Bernoulli(-dpsi)
	)
	L[0][0] = c * bp * eta0
	L[0][1] = -c * bm * eta1
	L[1][0] = -c * bp * eta0
	L[1][1] = c * bm * eta1
	return
}
