package newton

import (
	"fmt"
)

type State uint8

const (
	Iterating State = iota
	Converged
	MaxIterationsReached
	Diverged
)

func (s State) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "maximum iterations reached"
	case Diverged:
		return "diverged"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState inverts String.
func ParseState(label string) (State, error) {
	for _, s := range []State{Iterating, Converged, MaxIterationsReached, Diverged} {
		if s.String() == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown Newton state %q", label)
}

// Status tracks one nonlinear solve. Relative residuals are always measured
// against the residual of the starting iterate.
type Status struct {
	Iteration        int
	MaxIterations    int
	InitialResidual  float64
	Residual         float64
	RelativeResidual float64
	MaxResidual      float64
	RelativeTol      float64
	MaxResidualTol   float64
	Criterion        Criterion
	state            State
}

func NewStatus(p Params, initialResidual, initialMaxResidual float64) (s *Status) {
	s = &Status{
		MaxIterations:    p.MaxIterations,
		InitialResidual:  initialResidual,
		Residual:         initialResidual,
		RelativeResidual: 1,
		MaxResidual:      initialMaxResidual,
		RelativeTol:      p.RelativeTol,
		MaxResidualTol:   p.MaxResidualTol,
		Criterion:        p.Criterion,
	}
	if initialResidual == 0 {
		s.RelativeResidual = 0
	}
	s.refresh()
	return
}

func (s *Status) State() State { return s.state }

func (s *Status) NeedsToIterate() bool { return s.state == Iterating }

func (s *Status) Converged() bool { return s.state == Converged }

// UpdateResiduals records the l2 and max norms of the residual at the newly
// accepted iterate.
func (s *Status) UpdateResiduals(residual, maxResidual float64) {
	if s.state == Diverged {
		return
	}
	s.Residual = residual
	s.MaxResidual = maxResidual
	if s.InitialResidual > 0 {
		s.RelativeResidual = residual / s.InitialResidual
	} else {
		s.RelativeResidual = 0
	}
	s.refresh()
}

func (s *Status) UpdateIteration() {
	if s.state == Diverged {
		return
	}
	s.Iteration++
	s.refresh()
}

func (s *Status) Diverge() {
	s.state = Diverged
}

func (s *Status) satisfied() bool {
	rel := s.RelativeResidual <= s.RelativeTol
	switch s.Criterion {
	case RelativeAndMax:
		return rel && s.MaxResidual <= s.MaxResidualTol
	case RelativeOrMax:
		return rel || s.MaxResidual <= s.MaxResidualTol
	}
	return rel
}

func (s *Status) refresh() {
	switch {
	case s.state == Diverged:
	case s.satisfied():
		s.state = Converged
	case s.Iteration >= s.MaxIterations:
		s.state = MaxIterationsReached
	default:
		s.state = Iterating
	}
}

func (s *Status) String() string {
	return fmt.Sprintf("Newton %s after %d of %d iterations: relative residual %8.5e (tol %8.5e), max residual %8.5e (tol %8.5e, criterion %s)",
		s.state, s.Iteration, s.MaxIterations, s.RelativeResidual, s.RelativeTol,
		s.MaxResidual, s.MaxResidualTol, s.Criterion)
}
