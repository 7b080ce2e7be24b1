package newton

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopnp/utils"
)

var (
	ErrBacktrackingExhausted = errors.New("newton backtracking exhausted")
	ErrMaxIterationsReached  = errors.New("newton maximum iterations reached")
)

// Problem is the residual and Jacobian assembly of a discretized nonlinear
// system. Residual rows on Dirichlet unknowns are zero, Jacobian rows on
// them are identity rows so updates keep the boundary values.
type Problem interface {
	Residual(x *mat.VecDense) (*mat.VecDense, error)
	Jacobian(x *mat.VecDense) (mat.Matrix, error)
}

// BacktrackError reports a damped update that never reduced the residual.
// Trial holds the last damped iterate, Relative its relative residual.
type BacktrackError struct {
	Attempts int
	Relative float64
	Previous float64
	Trial    *mat.VecDense
	Residual *mat.VecDense
}

func (e *BacktrackError) Error() string {
	return fmt.Sprintf("residual has not decreased after damping %d times: relative residual %8.5e > %8.5e",
		e.Attempts, e.Relative, e.Previous)
}

func (e *BacktrackError) Unwrap() error { return ErrBacktrackingExhausted }

// DampResult describes an accepted update.
type DampResult struct {
	Relative    float64 // relative l2 residual of the accepted iterate
	Residual    float64 // l2 residual
	MaxResidual float64
	Attempts    int           // number of times the update was scaled
	R           *mat.VecDense // residual vector at the accepted iterate
}

// ApplyDampedUpdate tries iterate+update and scales the update by the damping
// factor until the relative residual does not exceed relative, at most
// MaxAttempts times. On success the trial is copied into iterate. On failure
// iterate is left untouched and a *BacktrackError is returned. The update is
// scaled in place.
func ApplyDampedUpdate(p Problem, iterate, update *mat.VecDense, relative, initialResidual float64,
	dp DampingParams, logger ...Logger) (dr DampResult, err error) {
	var (
		log   = firstLogger(logger)
		trial = mat.NewVecDense(iterate.Len(), nil)
		res   *mat.VecDense
	)
	if err = dp.Validate(); err != nil {
		return
	}
	if !(initialResidual > 0) {
		err = fmt.Errorf("initial residual must be positive for relative measurements, have %v", initialResidual)
		return
	}
	if update.Len() != iterate.Len() {
		err = fmt.Errorf("update length %d does not match iterate length %d", update.Len(), iterate.Len())
		return
	}
	evaluate := func() (rel float64, err error) {
		trial.AddVec(iterate, update)
		if res, err = p.Residual(trial); err != nil {
			return
		}
		rel = utils.NormL2(res) / initialResidual
		return
	}
	// NaN never compares greater, it must count as an increase
	worse := func(rel float64) bool {
		return math.IsNaN(rel) || rel > relative
	}
	if dr.Relative, err = evaluate(); err != nil {
		return
	}
	log.Printf("\t\trelative residual after damping %d times: %8.5e\n", dr.Attempts, dr.Relative)
	for worse(dr.Relative) && dr.Attempts < dp.MaxAttempts {
		dr.Attempts++
		update.ScaleVec(dp.Factor, update)
		if dr.Relative, err = evaluate(); err != nil {
			return
		}
		log.Printf("\t\trelative residual after damping %d times: %8.5e\n", dr.Attempts, dr.Relative)
	}
	if worse(dr.Relative) {
		err = &BacktrackError{
			Attempts: dr.Attempts,
			Relative: dr.Relative,
			Previous: relative,
			Trial:    trial,
			Residual: res,
		}
		return
	}
	log.Printf("\taccepted update after damping %d times\n", dr.Attempts)
	dr.Residual = dr.Relative * initialResidual
	dr.MaxResidual = utils.NormMax(res)
	dr.R = res
	iterate.CopyVec(trial)
	return
}
