package linsolve

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopnp/utils"
)

// DenseLU factors a dense copy of A, only sensible for small systems.
type DenseLU struct{}

func (s *DenseLU) Solve(A mat.Matrix, b mat.Vector) (x *mat.VecDense, err error) {
	var (
		n  int
		lu mat.LU
	)
	if n, err = checkDims("lu", A, b); err != nil {
		return
	}
	lu.Factorize(mat.DenseCopyOf(A))
	x = mat.NewVecDense(n, nil)
	if err = lu.SolveVecTo(x, false, b); err != nil && !conditionOK(err) {
		x = nil
		err = &SolveError{Method: "lu", Status: StatusSingular}
		return
	}
	err = nil
	if !utils.IsFinite(utils.VecData(x)) {
		x = nil
		err = &SolveError{Method: "lu", Status: StatusNotFinite}
	}
	return
}

// conditionOK accepts an ill-conditioning warning from gonum as long as the
// factorization is not exactly singular.
func conditionOK(err error) bool {
	var c mat.Condition
	if errors.As(err, &c) {
		return !math.IsInf(float64(c), 1)
	}
	return false
}

// BlockTridiagonal solves systems whose nonzeros lie in the tridiagonal band
// of BlockSize x BlockSize blocks, which is the pattern produced by P1
// elements on an interval with interleaved unknowns. The block Thomas
// algorithm produces no fill outside the band so the solve is exact.
type BlockTridiagonal struct {
	BlockSize int
}

func (s *BlockTridiagonal) Solve(A mat.Matrix, b mat.Vector) (x *mat.VecDense, err error) {
	var (
		n    int
		bs   = s.BlockSize
		fail = func(st Status) {
			x = nil
			err = &SolveError{Method: "blocktridiagonal", Status: st}
		}
	)
	if n, err = checkDims("blocktridiagonal", A, b); err != nil {
		return
	}
	if bs < 1 || n%bs != 0 {
		fail(StatusDimension)
		return
	}
	if utils.Bandwidth(A, bs) > 1 {
		fail(StatusDimension)
		return
	}
	var (
		nb    = n / bs
		Cp    = make([]*mat.Dense, nb) // modified upper blocks
		dp    = make([]*mat.VecDense, nb)
		block = func(I, J int) *mat.Dense {
			B := mat.NewDense(bs, bs, nil)
			for i := 0; i < bs; i++ {
				for j := 0; j < bs; j++ {
					B.Set(i, j, A.At(I*bs+i, J*bs+j))
				}
			}
			return B
		}
		rhs = func(I int) *mat.VecDense {
			v := mat.NewVecDense(bs, nil)
			for i := 0; i < bs; i++ {
				v.SetVec(i, b.AtVec(I*bs+i))
			}
			return v
		}
	)
	for I := 0; I < nb; I++ {
		var (
			lu mat.LU
			M  = block(I, I)
			d  = rhs(I)
		)
		if I > 0 {
			L := block(I, I-1)
			var LC mat.Dense
			LC.Mul(L, Cp[I-1])
			M.Sub(M, &LC)
			var Ld mat.VecDense
			Ld.MulVec(L, dp[I-1])
			d.SubVec(d, &Ld)
		}
		lu.Factorize(M)
		dp[I] = mat.NewVecDense(bs, nil)
		if e := lu.SolveVecTo(dp[I], false, d); e != nil && !conditionOK(e) {
			fail(StatusSingular)
			return
		}
		if I < nb-1 {
			Cp[I] = mat.NewDense(bs, bs, nil)
			if e := lu.SolveTo(Cp[I], false, block(I, I+1)); e != nil && !conditionOK(e) {
				fail(StatusSingular)
				return
			}
		}
	}
	x = mat.NewVecDense(n, nil)
	xI := dp[nb-1]
	for I := nb - 1; I >= 0; I-- {
		if I < nb-1 {
			var cx mat.VecDense
			cx.MulVec(Cp[I], xI)
			xI = mat.NewVecDense(bs, nil)
			xI.SubVec(dp[I], &cx)
		}
		for i := 0; i < bs; i++ {
			x.SetVec(I*bs+i, xI.AtVec(i))
		}
	}
	if !utils.IsFinite(utils.VecData(x)) {
		fail(StatusNotFinite)
	}
	return
}
