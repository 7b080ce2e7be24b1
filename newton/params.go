package newton

import (
	"fmt"
	"strings"
)

// Criterion is the single convergence predicate used everywhere a Newton
// solve decides whether it is done.
type Criterion uint8

const (
	Relative       Criterion = iota // rel <= RelativeTol
	RelativeAndMax                  // rel <= RelativeTol && max <= MaxResidualTol
	RelativeOrMax                   // rel <= RelativeTol || max <= MaxResidualTol
)

var CriterionNames = map[string]Criterion{
	"relative":         Relative,
	"relative-and-max": RelativeAndMax,
	"relative-or-max":  RelativeOrMax,
}

func NewCriterion(label string) (c Criterion, err error) {
	var ok bool
	if len(strings.TrimSpace(label)) == 0 {
		return Relative, nil
	}
	if c, ok = CriterionNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown convergence criterion %q", label)
	}
	return
}

func (c Criterion) String() string {
	for k, v := range CriterionNames {
		if v == c {
			return k
		}
	}
	return "unknown"
}

// DampingParams controls backtracking, each rejected trial scales the update
// by Factor, at most MaxAttempts times.
type DampingParams struct {
	Factor      float64
	MaxAttempts int
}

type Params struct {
	MaxIterations  int
	RelativeTol    float64
	MaxResidualTol float64
	Criterion      Criterion
	Damping        DampingParams
	// AcceptFailedDamping commits the last damped trial when backtracking
	// does not reduce the residual, instead of stopping the solve.
	AcceptFailedDamping bool
}

func DefaultParams() Params {
	return Params{
		MaxIterations:  15,
		RelativeTol:    1.e-8,
		MaxResidualTol: 1.e-10,
		Criterion:      Relative,
		Damping: DampingParams{
			Factor:      0.5,
			MaxAttempts: 10,
		},
	}
}

func (p DampingParams) Validate() error {
	if !(p.Factor > 0 && p.Factor < 1) {
		return fmt.Errorf("damping factor must be in (0,1), have %v", p.Factor)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("maximum damping attempts must be non-negative, have %d", p.MaxAttempts)
	}
	return nil
}

func (p Params) Validate() error {
	if p.MaxIterations < 0 {
		return fmt.Errorf("maximum Newton iterations must be non-negative, have %d", p.MaxIterations)
	}
	if !(p.RelativeTol > 0) {
		return fmt.Errorf("relative tolerance must be positive, have %v", p.RelativeTol)
	}
	if p.Criterion != Relative && !(p.MaxResidualTol > 0) {
		return fmt.Errorf("criterion %s needs a positive max residual tolerance, have %v",
			p.Criterion, p.MaxResidualTol)
	}
	return p.Damping.Validate()
}
