package InputParameters

import (
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"

	"github.com/notargets/gopnp/adapt"
	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/newton"
	"github.com/notargets/gopnp/pnp"
)

type SpeciesParameters struct {
	Name        string  `json:"Name"`
	Valency     float64 `json:"Valency"`
	Diffusivity float64 `json:"Diffusivity"`
}

type NewtonParameters struct {
	MaxIterations        int     `json:"MaxIterations"`
	RelativeTolerance    float64 `json:"RelativeTolerance"`
	MaxResidualTolerance float64 `json:"MaxResidualTolerance"`
	Criterion            string  `json:"Criterion"` // relative, relative-and-max, relative-or-max
	DampingFactor        float64 `json:"DampingFactor"`
	MaxDampingAttempts   int     `json:"MaxDampingAttempts"`
	AcceptFailedDamping  bool    `json:"AcceptFailedDamping"`
}

type LinearSolverParameters struct {
	Method        string  `json:"Method"` // blocktridiagonal, bicgstab, lu
	Tolerance     float64 `json:"Tolerance"`
	MaxIterations int     `json:"MaxIterations"`
}

type RefinementParameters struct {
	Indicator string  `json:"Indicator"` // entropy, electric-field
	Tolerance float64 `json:"Tolerance"`
	MaxCells  int     `json:"MaxCells"`
	MaxDepth  int     `json:"MaxDepth"`
	MaxLevels int     `json:"MaxLevels"`
	MaxGrowth float64 `json:"MaxGrowth"` // per pass cell budget as a multiple of the starting cells, 0 for none
}

// TimeSteppingParameters select backward Euler steps, a zero TimeStep solves
// the steady problem.
type TimeSteppingParameters struct {
	TimeStep  float64 `json:"TimeStep"`
	FinalTime float64 `json:"FinalTime"`
}

type OutputParameters struct {
	Directory          string `json:"Directory"`
	Snapshots          bool   `json:"Snapshots"`
	IterationSnapshots bool   `json:"IterationSnapshots"`
}

// Parameters obtained from the YAML input file, ghodss/yaml goes through
// encoding/json so the keys are the json tags.
type PNPParameters struct {
	Title                  string                 `json:"Title"`
	Benchmark              string                 `json:"Benchmark"` // manufactured, linear, equilibrium
	ElectricStrength       float64                `json:"ElectricStrength"`
	ReferenceConcentration float64                `json:"ReferenceConcentration"`
	Permittivity           float64                `json:"Permittivity"`
	Species                []SpeciesParameters    `json:"Species"`
	InitialCells           int                    `json:"InitialCells"`
	UseEAFE                bool                   `json:"UseEAFE"`
	Newton                 NewtonParameters       `json:"Newton"`
	LinearSolver           LinearSolverParameters `json:"LinearSolver"`
	Refinement             RefinementParameters   `json:"Refinement"`
	TimeStepping           TimeSteppingParameters `json:"TimeStepping"`
	Output                 OutputParameters       `json:"Output"`
}

// NewPNPParameters returns the defaults, Parse only overwrites the keys
// present in the file.
func NewPNPParameters() (ip *PNPParameters) {
	var (
		def = pnp.DefaultParams()
		np  = def.Newton
		lp  = def.Linear
	)
	ip = &PNPParameters{
		Title:                  "PNP",
		Benchmark:              def.Benchmark.Kind.String(),
		ElectricStrength:       def.Benchmark.ElectricStrength,
		ReferenceConcentration: def.Benchmark.ReferenceConcentration,
		Permittivity:           def.Coefficients.Permittivity,
		InitialCells:           def.InitialCells,
		UseEAFE:                def.UseEAFE,
		Newton: NewtonParameters{
			MaxIterations:        np.MaxIterations,
			RelativeTolerance:    np.RelativeTol,
			MaxResidualTolerance: np.MaxResidualTol,
			Criterion:            np.Criterion.String(),
			DampingFactor:        np.Damping.Factor,
			MaxDampingAttempts:   np.Damping.MaxAttempts,
		},
		LinearSolver: LinearSolverParameters{
			Method:        lp.Method.String(),
			Tolerance:     lp.Tol,
			MaxIterations: lp.MaxIterations,
		},
		Refinement: RefinementParameters{
			Indicator: def.Refine.Indicator.String(),
			Tolerance: def.Refine.Tol,
			MaxCells:  def.Refine.MaxCells,
			MaxDepth:  def.Refine.MaxDepth,
			MaxLevels: def.MaxLevels,
			MaxGrowth: def.Refine.MaxGrowth,
		},
		TimeStepping: TimeSteppingParameters{
			TimeStep:  def.TimeStep,
			FinalTime: def.FinalTime,
		},
		Output: OutputParameters{
			Directory:          "pnp_output",
			Snapshots:          true,
			IterationSnapshots: true,
		},
	}
	for _, s := range def.Coefficients.Species {
		ip.Species = append(ip.Species, SpeciesParameters{
			Name: s.Name, Valency: s.Valency, Diffusivity: s.Diffusivity,
		})
	}
	return
}

func (ip *PNPParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *PNPParameters) Print() {
	ip.Fprint(os.Stdout)
}

func (ip *PNPParameters) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%s]\t\t= Benchmark\n", ip.Benchmark)
	fmt.Fprintf(w, "%8.5f\t\t= Electric Strength\n", ip.ElectricStrength)
	fmt.Fprintf(w, "%8.5f\t\t= Reference Concentration\n", ip.ReferenceConcentration)
	fmt.Fprintf(w, "%8.5f\t\t= Permittivity\n", ip.Permittivity)
	for i, s := range ip.Species {
		fmt.Fprintf(w, "Species[%d] = %s, valency %g, diffusivity %g\n", i+1, s.Name, s.Valency, s.Diffusivity)
	}
	fmt.Fprintf(w, "[%d]\t\t\t= Initial Cells\n", ip.InitialCells)
	fmt.Fprintf(w, "[%v]\t\t\t= EAFE Jacobian\n", ip.UseEAFE)
	fmt.Fprintf(w, "Newton = %+v\n", ip.Newton)
	fmt.Fprintf(w, "LinearSolver = %+v\n", ip.LinearSolver)
	fmt.Fprintf(w, "Refinement = %+v\n", ip.Refinement)
	if ip.TimeStepping.TimeStep > 0 {
		fmt.Fprintf(w, "TimeStepping = %+v\n", ip.TimeStepping)
	}
	fmt.Fprintf(w, "Output = %+v\n", ip.Output)
}

// ToPNP converts the file parameters into solver parameters, every name is
// resolved and every value checked.
func (ip *PNPParameters) ToPNP() (p pnp.Params, err error) {
	p = pnp.DefaultParams()
	if p.Benchmark.Kind, err = pnp.NewBenchmarkKind(ip.Benchmark); err != nil {
		return
	}
	p.Benchmark.ElectricStrength = ip.ElectricStrength
	p.Benchmark.ReferenceConcentration = ip.ReferenceConcentration
	p.Coefficients = pnp.Coefficients{Permittivity: ip.Permittivity}
	for _, s := range ip.Species {
		p.Coefficients.Species = append(p.Coefficients.Species, pnp.Species{
			Name: s.Name, Valency: s.Valency, Diffusivity: s.Diffusivity,
		})
	}
	if err = p.Coefficients.Validate(); err != nil {
		return
	}
	p.InitialCells = ip.InitialCells
	p.UseEAFE = ip.UseEAFE

	n := ip.Newton
	p.Newton = newton.Params{
		MaxIterations:  n.MaxIterations,
		RelativeTol:    n.RelativeTolerance,
		MaxResidualTol: n.MaxResidualTolerance,
		Damping: newton.DampingParams{
			Factor:      n.DampingFactor,
			MaxAttempts: n.MaxDampingAttempts,
		},
		AcceptFailedDamping: n.AcceptFailedDamping,
	}
	if p.Newton.Criterion, err = newton.NewCriterion(n.Criterion); err != nil {
		return
	}

	l := ip.LinearSolver
	if p.Linear.Method, err = linsolve.NewMethod(l.Method); err != nil {
		return
	}
	p.Linear.Tol, p.Linear.MaxIterations = l.Tolerance, l.MaxIterations

	r := ip.Refinement
	if p.Refine.Indicator, err = adapt.NewIndicator(r.Indicator); err != nil {
		return
	}
	p.Refine.Tol, p.Refine.MaxCells, p.Refine.MaxDepth = r.Tolerance, r.MaxCells, r.MaxDepth
	p.Refine.MaxGrowth = r.MaxGrowth
	p.MaxLevels = r.MaxLevels
	p.TimeStep, p.FinalTime = ip.TimeStepping.TimeStep, ip.TimeStepping.FinalTime
	err = p.Validate()
	return
}

func (ip *PNPParameters) Validate() (err error) {
	_, err = ip.ToPNP()
	return
}

// ReadFile parses a parameter file on top of the defaults.
func ReadFile(name string) (ip *PNPParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(name); err != nil {
		return
	}
	ip = NewPNPParameters()
	if err = ip.Parse(data); err != nil {
		err = fmt.Errorf("parsing %s: %w", name, err)
		return
	}
	err = ip.Validate()
	return
}

var ExampleFile = `
########################################
Title: "Manufactured PNP"
Benchmark: manufactured # or linear, equilibrium
Species:
  - Name: cation
    Valency: 1
    Diffusivity: 1
  - Name: anion
    Valency: -1
    Diffusivity: 1
InitialCells: 10
Newton:
  MaxIterations: 15
  RelativeTolerance: 1.e-8
Refinement:
  Indicator: entropy # or electric-field
  Tolerance: 1.e-3
  MaxCells: 5000
  MaxDepth: 3
  MaxGrowth: 0 # or e.g. 2, at most doubling the cells per pass
TimeStepping:
  TimeStep: 0 # steady, or backward Euler steps up to FinalTime
  FinalTime: 0
########################################
`
