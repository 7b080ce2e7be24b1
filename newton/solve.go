package newton

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/utils"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func firstLogger(l []Logger) Logger {
	if len(l) == 0 || l[0] == nil {
		return nopLogger{}
	}
	return l[0]
}

// Observer is called after every accepted Newton iterate.
type Observer func(s *Status, iterate *mat.VecDense)

type Solver struct {
	Params    Params
	Linear    linsolve.Solver
	Logger    Logger
	Observers []Observer
}

// Solve runs damped Newton on p starting from, and updating, iterate. The
// returned Status is never nil once a finite initial residual is assembled.
// Errors wrap ErrMaxIterationsReached, ErrBacktrackingExhausted or
// linsolve.ErrLinearSolverFailure; in every case iterate holds the last
// accepted values.
func (ns *Solver) Solve(ctx context.Context, p Problem, iterate *mat.VecDense) (st *Status, err error) {
	var (
		log = firstLogger([]Logger{ns.Logger})
		par = ns.Params
		res *mat.VecDense
	)
	if err = par.Validate(); err != nil {
		return
	}
	if ns.Linear == nil {
		err = fmt.Errorf("newton solver needs a linear solver")
		return
	}
	if res, err = p.Residual(iterate); err != nil {
		err = fmt.Errorf("initial residual: %w", err)
		return
	}
	var (
		r0    = utils.NormL2(res)
		r0max = utils.NormMax(res)
	)
	if math.IsNaN(r0) || math.IsInf(r0, 0) {
		err = fmt.Errorf("initial residual is not finite: %v", r0)
		return
	}
	st = NewStatus(par, r0, r0max)
	log.Printf("\tinitial residual :     %10.5e\n", r0)
	log.Printf("\tinitial max residual : %10.5e\n", r0max)
	for st.NeedsToIterate() {
		if err = ctx.Err(); err != nil {
			return
		}
		log.Printf("Newton iteration: %d\n", st.Iteration+1)
		var (
			J      mat.Matrix
			update *mat.VecDense
			dr     DampResult
		)
		if J, err = p.Jacobian(iterate); err != nil {
			st.Diverge()
			err = fmt.Errorf("jacobian assembly: %w", err)
			return
		}
		negRes := mat.NewVecDense(res.Len(), nil)
		negRes.ScaleVec(-1, res)
		if update, err = ns.Linear.Solve(J, negRes); err != nil {
			st.Diverge()
			log.Printf("\tlinear solve failed: %v\n", err)
			err = fmt.Errorf("newton iteration %d: %w", st.Iteration+1, err)
			return
		}
		dr, err = ApplyDampedUpdate(p, iterate, update, st.RelativeResidual, r0, par.Damping, log)
		var bt *BacktrackError
		switch {
		case err == nil:
		case errors.As(err, &bt) && par.AcceptFailedDamping:
			log.Printf("Newton backtracking failed, continuing with the non-decreasing step\n")
			iterate.CopyVec(bt.Trial)
			dr = DampResult{
				Relative:    bt.Relative,
				Residual:    bt.Relative * r0,
				MaxResidual: utils.NormMax(bt.Residual),
				Attempts:    bt.Attempts,
				R:           bt.Residual,
			}
			err = nil
		default:
			st.Diverge()
			log.Printf("Newton backtracking failed!\n\t%v\n", err)
			err = fmt.Errorf("newton iteration %d: %w", st.Iteration+1, err)
			return
		}
		res = dr.R
		st.UpdateResiduals(dr.Residual, dr.MaxResidual)
		st.UpdateIteration()
		log.Printf("\tmaximum residual :  %10.5e\n", st.MaxResidual)
		log.Printf("\trelative residual : %10.5e\n", st.RelativeResidual)
		for _, obs := range ns.Observers {
			obs(st, iterate)
		}
	}
	switch st.State() {
	case Converged:
		log.Printf("Successfully solved the system below desired residual in %d steps!\n", st.Iteration)
	case MaxIterationsReached:
		log.Printf("Did not converge in %d Newton iterations...\n", st.MaxIterations)
		log.Printf("\tcurrent relative residual is %8.5e > %8.5e\n", st.RelativeResidual, st.RelativeTol)
		err = fmt.Errorf("%w: %s", ErrMaxIterationsReached, st)
	}
	return
}
