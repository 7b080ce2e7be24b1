package pnp

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/mesh1D"
)

type BenchmarkKind uint8

const (
	Manufactured BenchmarkKind = iota // smooth exact solution with matching sources
	Linear                            // junction between two reservoirs, no sources
	Equilibrium                       // constant exact solution, perturbed start
)

var BenchmarkNames = map[string]BenchmarkKind{
	"manufactured": Manufactured,
	"linear":       Linear,
	"equilibrium":  Equilibrium,
}

func NewBenchmarkKind(label string) (bk BenchmarkKind, err error) {
	var ok bool
	if bk, ok = BenchmarkNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown benchmark %q", label)
	}
	return
}

func (bk BenchmarkKind) String() string {
	for k, v := range BenchmarkNames {
		if v == bk {
			return k
		}
	}
	return "unknown"
}

type BenchmarkParams struct {
	Kind                   BenchmarkKind
	ElectricStrength       float64
	ReferenceConcentration float64
}

func DefaultBenchmarkParams() BenchmarkParams {
	return BenchmarkParams{
		Kind:                   Manufactured,
		ElectricStrength:       1,
		ReferenceConcentration: 1,
	}
}

// Benchmark is a fully resolved test case. Field values are in solver
// variables: the potential and the log-density of each species.
type Benchmark struct {
	Kind         BenchmarkKind
	XMin, XMax   float64
	Coefficients Coefficients
	Left, Right  []float64 // Dirichlet values per field
	// FixedCharge and Reactions may be nil, meaning zero.
	FixedCharge func(x float64) float64
	Reactions   func(x float64, r []float64)
	Initial     func(x float64, u []float64)
	// Exact and ExactDerivative are nil when no closed form is known.
	Exact           func(x float64, u []float64)
	ExactDerivative func(x float64, du []float64)
}

func NewBenchmark(bp BenchmarkParams, c Coefficients) (b *Benchmark, err error) {
	if err = c.Validate(); err != nil {
		return
	}
	if !(bp.ReferenceConcentration > 0) {
		err = fmt.Errorf("reference concentration must be positive, have %v", bp.ReferenceConcentration)
		return
	}
	switch bp.Kind {
	case Manufactured:
		b = newManufactured(bp, c)
	case Linear:
		b = newLinear(c)
	case Equilibrium:
		if b, err = newEquilibrium(bp, c); err != nil {
			return
		}
	default:
		err = fmt.Errorf("unknown benchmark %d", bp.Kind)
	}
	return
}

// newManufactured builds sources so that
//
//	phi = x E + sin(pi x),  u_i = log(c0) - z_i E x^2
//
// solves the system on [-1,1].
func newManufactured(bp BenchmarkParams, c Coefficients) (b *Benchmark) {
	var (
		E   = bp.ElectricStrength
		lc0 = math.Log(bp.ReferenceConcentration)
		ns  = len(c.Species)
	)
	exact := func(x float64, u []float64) {
		u[0] = x*E + math.Sin(math.Pi*x)
		for i, s := range c.Species {
			u[i+1] = lc0 - s.Valency*E*x*x
		}
	}
	derivative := func(x float64, du []float64) {
		du[0] = E + math.Pi*math.Cos(math.Pi*x)
		for i, s := range c.Species {
			du[i+1] = -2 * s.Valency * E * x
		}
	}
	second := func(x float64, ddu []float64) {
		ddu[0] = -math.Pi * math.Pi * math.Sin(math.Pi*x)
		for i, s := range c.Species {
			ddu[i+1] = -2 * s.Valency * E
		}
	}
	b = &Benchmark{
		Kind:            Manufactured,
		XMin:            -1,
		XMax:            1,
		Coefficients:    c,
		Exact:           exact,
		ExactDerivative: derivative,
	}
	b.FixedCharge = func(x float64) (f float64) {
		u := make([]float64, ns+1)
		ddu := make([]float64, ns+1)
		exact(x, u)
		second(x, ddu)
		f = -c.Permittivity * ddu[0]
		for i, s := range c.Species {
			f -= s.Valency * math.Exp(u[i+1])
		}
		return
	}
	b.Reactions = func(x float64, r []float64) {
		var (
			u   = make([]float64, ns+1)
			du  = make([]float64, ns+1)
			ddu = make([]float64, ns+1)
		)
		exact(x, u)
		derivative(x, du)
		second(x, ddu)
		for i, s := range c.Species {
			z := s.Valency
			r[i] = -s.Diffusivity * math.Exp(u[i+1]) *
				(du[i+1]*(du[i+1]+z*du[0]) + (ddu[i+1] + z*ddu[0]))
		}
	}
	b.Left, b.Right = make([]float64, ns+1), make([]float64, ns+1)
	exact(b.XMin, b.Left)
	exact(b.XMax, b.Right)
	b.Initial = b.linearGuess
	return
}

// newLinear connects a dilute and a concentrated reservoir across [-5,5]:
// cations go from 0.1 to 1, anions from 1 to 0.1 and the potential from -1
// to 1. Neutral species stay at unit density.
func newLinear(c Coefficients) (b *Benchmark) {
	ns := len(c.Species)
	b = &Benchmark{
		Kind:         Linear,
		XMin:         -5,
		XMax:         5,
		Coefficients: c,
		Left:         make([]float64, ns+1),
		Right:        make([]float64, ns+1),
	}
	b.Left[0], b.Right[0] = -1, 1
	for i, s := range c.Species {
		switch {
		case s.Valency > 0:
			b.Left[i+1], b.Right[i+1] = math.Log(0.1), math.Log(1)
		case s.Valency < 0:
			b.Left[i+1], b.Right[i+1] = math.Log(1), math.Log(0.1)
		}
	}
	b.Initial = b.linearGuess
	return
}

// newEquilibrium has zero potential and the reference density everywhere,
// which needs an electroneutral set of species.
func newEquilibrium(bp BenchmarkParams, c Coefficients) (b *Benchmark, err error) {
	var (
		ns     = len(c.Species)
		lc0    = math.Log(bp.ReferenceConcentration)
		charge float64
	)
	for _, s := range c.Species {
		charge += s.Valency
	}
	if math.Abs(charge) > 1.e-12 {
		err = fmt.Errorf("equilibrium benchmark needs zero net valency, have %v", charge)
		return
	}
	exact := func(x float64, u []float64) {
		u[0] = 0
		for i := 0; i < ns; i++ {
			u[i+1] = lc0
		}
	}
	b = &Benchmark{
		Kind:         Equilibrium,
		XMin:         -1,
		XMax:         1,
		Coefficients: c,
		Exact:        exact,
		ExactDerivative: func(x float64, du []float64) {
			for j := range du {
				du[j] = 0
			}
		},
		Left:  make([]float64, ns+1),
		Right: make([]float64, ns+1),
	}
	exact(b.XMin, b.Left)
	exact(b.XMax, b.Right)
	b.Initial = func(x float64, u []float64) {
		exact(x, u)
		bump := 0.1 * math.Sin(math.Pi*(x-b.XMin)/(b.XMax-b.XMin))
		for j := range u {
			u[j] += bump
		}
	}
	return
}

func (b *Benchmark) linearGuess(x float64, u []float64) {
	t := (x - b.XMin) / (b.XMax - b.XMin)
	for j := range u {
		u[j] = (1-t)*b.Left[j] + t*b.Right[j]
	}
}

func (b *Benchmark) HasExact() bool { return b.Exact != nil && b.ExactDerivative != nil }

// NewMesh is the uniform mesh with K cells on the benchmark domain.
func (b *Benchmark) NewMesh(K int) (*mesh1D.Mesh, error) {
	return mesh1D.NewUniform(b.XMin, b.XMax, K)
}

// InitialFields interpolates the initial guess onto m, boundary values are
// set to the Dirichlet data exactly.
func (b *Benchmark) InitialFields(m *mesh1D.Mesh) (F []*fem.Function) {
	var (
		nf = b.Coefficients.NumFields()
		u  = make([]float64, nf)
		nv = m.NumVertices()
	)
	F = make([]*fem.Function, nf)
	for j := range F {
		F[j] = fem.NewFunction(m)
	}
	for k, x := range m.VX {
		b.Initial(x, u)
		for j := range F {
			F[j].Values[k] = u[j]
		}
	}
	for j := range F {
		F[j].Values[0] = b.Left[j]
		F[j].Values[nv-1] = b.Right[j]
	}
	return
}

// ExactField returns the scalar exact solution of field j, nil when there is
// none.
func (b *Benchmark) ExactField(j int) func(x float64) float64 {
	if b.Exact == nil {
		return nil
	}
	u := make([]float64, b.Coefficients.NumFields())
	return func(x float64) float64 {
		b.Exact(x, u)
		return u[j]
	}
}

func (b *Benchmark) ExactFieldDerivative(j int) func(x float64) float64 {
	if b.ExactDerivative == nil {
		return nil
	}
	du := make([]float64, b.Coefficients.NumFields())
	return func(x float64) float64 {
		b.ExactDerivative(x, du)
		return du[j]
	}
}
