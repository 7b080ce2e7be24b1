package pnp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopnp/adapt"
	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/mesh1D"
	"github.com/notargets/gopnp/newton"
)

type Params struct {
	Benchmark    BenchmarkParams
	Coefficients Coefficients
	InitialCells int
	UseEAFE      bool
	Newton       newton.Params
	Linear       linsolve.Params
	// Refine.MaxDepth bounds the refinement levels applied between two
	// solves, MaxLevels bounds the number of re-solves.
	Refine    adapt.Params
	MaxLevels int
	// A positive TimeStep runs backward Euler steps up to FinalTime, each
	// step with its own solve and refine loop. Zero solves the steady problem.
	TimeStep  float64
	FinalTime float64
}

func DefaultParams() Params {
	return Params{
		Benchmark:    DefaultBenchmarkParams(),
		Coefficients: DefaultCoefficients(),
		InitialCells: 10,
		Newton:       newton.DefaultParams(),
		Linear:       linsolve.DefaultParams(),
		Refine: adapt.Params{
			Indicator: adapt.Entropy,
			Tol:       1.e-3,
			MaxCells:  5000,
			MaxDepth:  3,
		},
		MaxLevels: 10,
	}
}

func (p Params) Validate() (err error) {
	if p.InitialCells < 1 {
		return fmt.Errorf("initial cell count must be positive, have %d", p.InitialCells)
	}
	if p.MaxLevels < 0 {
		return fmt.Errorf("maximum refinement levels must be non-negative, have %d", p.MaxLevels)
	}
	if p.TimeStep < 0 {
		return fmt.Errorf("time step must be non-negative, have %v", p.TimeStep)
	}
	if p.TimeStep > 0 && p.FinalTime < p.TimeStep {
		return fmt.Errorf("final time %v is shorter than the time step %v", p.FinalTime, p.TimeStep)
	}
	if err = p.Newton.Validate(); err != nil {
		return
	}
	return p.Refine.Validate()
}

// NumSteps is the number of backward Euler steps, 0 for a steady solve.
func (p Params) NumSteps() int {
	if p.TimeStep <= 0 {
		return 0
	}
	return int(math.Floor(p.FinalTime/p.TimeStep + 1.e-9))
}

// Stage locates a solve: time step (0 when steady), its time and the
// refinement level within the step.
type Stage struct {
	Step  int
	Time  float64
	Level int
}

// LevelRecord summarizes the solve on one mesh. The errors are NaN when the
// benchmark has no exact solution.
type LevelRecord struct {
	Stage
	Cells            int
	NewtonIterations int
	State            newton.State
	RelativeResidual float64
	MaxResidual      float64
	L2Error          float64
	H1Error          float64
	Energy           float64
	// RefinementLevels and Marked describe the refinement that followed.
	RefinementLevels int
	Marked           int
}

type Report struct {
	Levels []LevelRecord
	Mesh   *mesh1D.Mesh
	Fields []*fem.Function
}

// Converged reports whether the solve on the final mesh converged.
func (r Report) Converged() bool {
	return len(r.Levels) != 0 && r.Levels[len(r.Levels)-1].State == newton.Converged
}

// IterationHook is called after every accepted Newton iterate.
type IterationHook func(stage Stage, st *newton.Status, p *Problem, F []*fem.Function)

// LevelHook is called once the solve on a mesh is finished.
type LevelHook func(rec LevelRecord, p *Problem, F []*fem.Function)

type Driver struct {
	Params      Params
	Benchmark   *Benchmark
	Logger      *log.Logger
	OnIteration []IterationHook
	OnLevel     []LevelHook

	ns       *newton.Solver
	recovery linsolve.Solver
}

func NewDriver(p Params) (d *Driver, err error) {
	if err = p.Validate(); err != nil {
		return
	}
	var b *Benchmark
	if b, err = NewBenchmark(p.Benchmark, p.Coefficients); err != nil {
		return
	}
	d = &Driver{Params: p, Benchmark: b}
	return
}

func (d *Driver) printf(format string, v ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, v...)
	}
}

func (d *Driver) solvers() (ns *newton.Solver, recovery linsolve.Solver, err error) {
	lp := d.Params.Linear
	lp.BlockSize = d.Params.Coefficients.NumFields()
	ns = &newton.Solver{Params: d.Params.Newton}
	if ns.Linear, err = linsolve.New(lp); err != nil {
		return
	}
	if d.Logger != nil {
		ns.Logger = d.Logger
	}
	lp.BlockSize = 1
	recovery, err = linsolve.New(lp)
	return
}

// Run solves on the initial mesh, then alternates refinement and re-solves
// until refinement marks nothing or MaxLevels re-solves are done. A Newton
// solve stopping at its iteration cap is recorded and the loop goes on, any
// other solver failure ends the run. The report holds every level up to and
// including the failing one. With a time step the loop runs once per step,
// starting from the previous step's solution and mesh.
func (d *Driver) Run(ctx context.Context) (rep Report, err error) {
	var (
		par = d.Params
		b   = d.Benchmark
		m   *mesh1D.Mesh
	)
	if d.ns, d.recovery, err = d.solvers(); err != nil {
		return
	}
	if m, err = b.NewMesh(par.InitialCells); err != nil {
		return
	}
	F := b.InitialFields(m)
	nSteps := par.NumSteps()
	if nSteps == 0 {
		_, _, err = d.solveAdaptive(ctx, &rep, Stage{}, m, F, nil)
		return
	}
	for step := 1; step <= nSteps; step++ {
		stage := Stage{Step: step, Time: float64(step) * par.TimeStep}
		d.printf("Time step %d, t = %8.5f\n", step, stage.Time)
		if m, F, err = d.solveAdaptive(ctx, &rep, stage, m, F, F); err != nil {
			err = fmt.Errorf("time step %d: %w", step, err)
			return
		}
	}
	return
}

// solveAdaptive is the solve and refine loop of one stage. F is the initial
// guess on m, prev the previous time step's fields on m or nil when steady.
// It returns the mesh and the solution of the last level.
func (d *Driver) solveAdaptive(ctx context.Context, rep *Report, stage Stage, m *mesh1D.Mesh,
	F, prev []*fem.Function) (mOut *mesh1D.Mesh, FOut []*fem.Function, err error) {
	var (
		par = d.Params
		b   = d.Benchmark
		ns  = d.ns
	)
	if prev != nil {
		prev = append([]*fem.Function(nil), prev...)
	}
	for level := 0; ; level++ {
		if err = ctx.Err(); err != nil {
			return
		}
		var (
			prob = NewProblem(m, b, par.UseEAFE)
			x    = prob.Pack(F)
			st   *newton.Status
			stg  = stage
		)
		stg.Level = level
		if prev != nil {
			prob.TimeStep, prob.Previous = par.TimeStep, prev
		}
		d.printf("Level %d: solving on %d cells\n", level, m.NumCells())
		ns.Observers = []newton.Observer{func(s *newton.Status, it *mat.VecDense) {
			if len(d.OnIteration) == 0 {
				return
			}
			fields := prob.Fields(it)
			for _, hook := range d.OnIteration {
				hook(stg, s, prob, fields)
			}
		}}
		st, err = ns.Solve(ctx, prob, x)
		solved := prob.Fields(x)
		F = solved
		mOut, FOut = m, solved
		rep.Mesh, rep.Fields = m, solved
		rec := d.record(stg, st, prob, solved)
		if err != nil && !errors.Is(err, newton.ErrMaxIterationsReached) {
			rep.Levels = append(rep.Levels, rec)
			err = fmt.Errorf("level %d: %w", level, err)
			return
		}
		if err != nil {
			d.printf("Level %d: %v, continuing with the last iterate\n", level, err)
			err = nil
		}
		if level < par.MaxLevels {
			var (
				res adapt.Result
				s   = &State{Mesh: m, Fields: F, Coefficients: par.Coefficients, Recovery: d.recovery}
			)
			if res, err = adapt.RefineUntilConverged(ctx, s, par.Refine); err != nil {
				rep.Levels = append(rep.Levels, rec)
				err = fmt.Errorf("level %d refinement: %w", level, err)
				return
			}
			rec.RefinementLevels = res.Levels
			for _, c := range res.Marked {
				rec.Marked += c
			}
			if res.Levels > 0 {
				next := res.State.(*State)
				m, F = next.Mesh, next.Fields
				for j := range prev {
					prev[j] = prev[j].Transfer(m)
				}
			}
		}
		rep.Levels = append(rep.Levels, rec)
		d.printf("Level %d: %s\n", level, st)
		for _, hook := range d.OnLevel {
			hook(rec, prob, solved)
		}
		if rec.RefinementLevels == 0 {
			d.printf("No cells marked, final mesh has %d cells\n", m.NumCells())
			return
		}
	}
}

func (d *Driver) record(stage Stage, st *newton.Status, p *Problem, F []*fem.Function) (rec LevelRecord) {
	rec = LevelRecord{
		Stage:   stage,
		Cells:   F[0].Mesh.NumCells(),
		L2Error: math.NaN(),
		H1Error: math.NaN(),
		Energy:  p.Energy(F),
	}
	if st != nil {
		rec.NewtonIterations = st.Iteration
		rec.State = st.State()
		rec.RelativeResidual = st.RelativeResidual
		rec.MaxResidual = st.MaxResidual
	}
	if d.Benchmark.HasExact() {
		rec.L2Error, rec.H1Error = d.Errors(F)
	}
	return
}

// Errors are the L2 and H1 seminorm errors summed over all fields.
func (d *Driver) Errors(F []*fem.Function) (l2, h1 float64) {
	b := d.Benchmark
	for j, f := range F {
		e := fem.L2Error(f, b.ExactField(j))
		l2 += e * e
		e = fem.H1SemiError(f, b.ExactFieldDerivative(j))
		h1 += e * e
	}
	return math.Sqrt(l2), math.Sqrt(h1)
}
