// Package linsolve provides the linear solvers called once per Newton
// iteration and once per gradient recovery. Every solver reports failure as
// a *SolveError carrying a negative status code; callers must check it.
package linsolve

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var ErrLinearSolverFailure = errors.New("linear solver failure")

type Status int

const (
	StatusSuccess       Status = 0
	StatusMaxIterations Status = -1
	StatusBreakdown     Status = -2
	StatusSingular      Status = -3
	StatusDimension     Status = -4
	StatusNotFinite     Status = -5
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMaxIterations:
		return "maximum iterations reached"
	case StatusBreakdown:
		return "breakdown"
	case StatusSingular:
		return "singular matrix"
	case StatusDimension:
		return "dimension mismatch"
	case StatusNotFinite:
		return "non-finite values"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type SolveError struct {
	Method     string
	Status     Status
	Iterations int
	Residual   float64
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%s: %s (status %d) after %d iterations, residual %8.5e",
		e.Method, e.Status, int(e.Status), e.Iterations, e.Residual)
}

func (e *SolveError) Unwrap() error { return ErrLinearSolverFailure }

type Solver interface {
	Solve(A mat.Matrix, b mat.Vector) (x *mat.VecDense, err error)
}

type Method uint8

const (
	BlockTridiagonalMethod Method = iota
	BiCGStabMethod
	DenseLUMethod
)

var MethodNames = map[string]Method{
	"blocktridiagonal": BlockTridiagonalMethod,
	"bicgstab":         BiCGStabMethod,
	"lu":               DenseLUMethod,
}

func NewMethod(label string) (m Method, err error) {
	var ok bool
	if m, ok = MethodNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown linear solver %q", label)
	}
	return
}

func (m Method) String() string {
	for k, v := range MethodNames {
		if v == m {
			return k
		}
	}
	return "unknown"
}

// Params selects and tunes a solver, BlockSize is the number of unknowns per
// mesh vertex and only matters for the block tridiagonal solver.
type Params struct {
	Method        Method
	Tol           float64
	MaxIterations int
	BlockSize     int
}

func DefaultParams() Params {
	return Params{
		Method:        BlockTridiagonalMethod,
		Tol:           1.e-10,
		MaxIterations: 1000,
		BlockSize:     1,
	}
}

func New(p Params) (s Solver, err error) {
	switch p.Method {
	case BlockTridiagonalMethod:
		if p.BlockSize < 1 {
			err = fmt.Errorf("block size must be positive, have %d", p.BlockSize)
			return
		}
		s = &BlockTridiagonal{BlockSize: p.BlockSize}
	case BiCGStabMethod:
		if p.Tol <= 0 || p.MaxIterations < 1 {
			err = fmt.Errorf("bicgstab needs Tol > 0 and MaxIterations > 0, have %v, %d",
				p.Tol, p.MaxIterations)
			return
		}
		s = &BiCGStab{Tol: p.Tol, MaxIterations: p.MaxIterations}
	case DenseLUMethod:
		s = &DenseLU{}
	default:
		err = fmt.Errorf("unknown linear solver method %d", p.Method)
	}
	return
}

func checkDims(method string, A mat.Matrix, b mat.Vector) (n int, err error) {
	nr, nc := A.Dims()
	if nr != nc || nr != b.Len() {
		err = &SolveError{Method: method, Status: StatusDimension}
		return
	}
	n = nr
	return
}
