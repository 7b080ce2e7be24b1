package linsolve

import (
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BiCGStab is a Jacobi preconditioned BiCGSTAB iteration. Convergence is
// declared when ||b - A x|| <= Tol * ||b||.
type BiCGStab struct {
	Tol           float64
	MaxIterations int
}

func (s *BiCGStab) Solve(A mat.Matrix, b mat.Vector) (x *mat.VecDense, err error) {
	var (
		n int
	)
	if n, err = checkDims("bicgstab", A, b); err != nil {
		return
	}
	var (
		bb    = make([]float64, n)
		xx    = make([]float64, n)
		dinv  = make([]float64, n)
		r     = make([]float64, n)
		rhat  = make([]float64, n)
		p     = make([]float64, n)
		v     = make([]float64, n)
		y     = make([]float64, n)
		sv    = make([]float64, n)
		z     = make([]float64, n)
		tv    = make([]float64, n)
		rho   = 1.
		alpha = 1.
		omega = 1.
		iter  int
		fail  = func(st Status, res float64) {
			x = nil
			err = &SolveError{Method: "bicgstab", Status: st, Iterations: iter, Residual: res}
		}
		matVec = newMatVec(A)
	)
	for i := 0; i < n; i++ {
		bb[i] = b.AtVec(i)
		d := A.At(i, i)
		if d == 0 {
			d = 1
		}
		dinv[i] = 1 / d
	}
	bnorm := floats.Norm(bb, 2)
	if bnorm == 0 {
		x = mat.NewVecDense(n, nil)
		return
	}
	if math.IsNaN(bnorm) || math.IsInf(bnorm, 0) {
		fail(StatusNotFinite, bnorm)
		return
	}
	copy(r, bb)
	copy(rhat, bb)
	tol := s.Tol * bnorm
	for iter = 1; iter <= s.MaxIterations; iter++ {
		rhoNew := floats.Dot(rhat, r)
		if rhoNew == 0 {
			fail(StatusBreakdown, floats.Norm(r, 2))
			return
		}
		beta := (rhoNew / rho) * (alpha / omega)
		// p = r + beta*(p - omega*v)
		floats.AddScaled(p, -omega, v)
		floats.Scale(beta, p)
		floats.Add(p, r)
		floats.MulTo(y, dinv, p)
		matVec(v, y)
		rv := floats.Dot(rhat, v)
		if rv == 0 {
			fail(StatusBreakdown, floats.Norm(r, 2))
			return
		}
		alpha = rhoNew / rv
		floats.AddScaledTo(sv, r, -alpha, v)
		if floats.Norm(sv, 2) <= tol {
			floats.AddScaled(xx, alpha, y)
			x = mat.NewVecDense(n, xx)
			return
		}
		floats.MulTo(z, dinv, sv)
		matVec(tv, z)
		tt := floats.Dot(tv, tv)
		if tt == 0 {
			fail(StatusBreakdown, floats.Norm(sv, 2))
			return
		}
		omega = floats.Dot(tv, sv) / tt
		floats.AddScaled(xx, alpha, y)
		floats.AddScaled(xx, omega, z)
		floats.AddScaledTo(r, sv, -omega, tv)
		res := floats.Norm(r, 2)
		if math.IsNaN(res) {
			fail(StatusNotFinite, res)
			return
		}
		if res <= tol {
			x = mat.NewVecDense(n, xx)
			return
		}
		if omega == 0 {
			fail(StatusBreakdown, res)
			return
		}
		rho = rhoNew
	}
	iter = s.MaxIterations
	fail(StatusMaxIterations, floats.Norm(r, 2))
	return
}

// newMatVec returns dst = A*src, using the compressed storage when A is CSR.
func newMatVec(A mat.Matrix) func(dst, src []float64) {
	if csr, ok := A.(*sparse.CSR); ok {
		return func(dst, src []float64) {
			for i := range dst {
				dst[i] = 0
			}
			csr.MulVecTo(dst, false, src)
		}
	}
	return func(dst, src []float64) {
		d := mat.NewVecDense(len(dst), dst)
		d.MulVec(A, mat.NewVecDense(len(src), src))
	}
}
