package pnp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/mesh1D"
	"github.com/notargets/gopnp/utils"
)

// Problem is the P1 discretization of
//
//	-(eps phi')' = sum_i z_i exp(u_i) + f
//	-(D_i exp(u_i) (u_i' + z_i phi'))' = r_i
//
// with Dirichlet data at both ends of the mesh. Unknowns are interleaved by
// vertex, dof = vertex*NumFields + field. It implements newton.Problem, the
// Dirichlet values are carried by the iterate.
//
// With a positive TimeStep the Nernst-Planck equations gain the backward
// Euler term (exp(u_i) - exp(u_i^prev))/dt, Previous holding the fields of
// the last time step on the same mesh.
type Problem struct {
	Mesh         *mesh1D.Mesh
	Coefficients Coefficients
	FixedCharge  func(x float64) float64
	Reactions    func(x float64, r []float64)
	// UseEAFE replaces the Nernst-Planck diagonal Jacobian blocks with the
	// edge averaged (exponentially fitted) stiffness.
	UseEAFE  bool
	TimeStep float64
	Previous []*fem.Function
	quad     fem.Quadrature
}

func NewProblem(m *mesh1D.Mesh, b *Benchmark, useEAFE bool) *Problem {
	return &Problem{
		Mesh:         m,
		Coefficients: b.Coefficients,
		FixedCharge:  b.FixedCharge,
		Reactions:    b.Reactions,
		UseEAFE:      useEAFE,
		quad:         fem.NewQuadrature(3),
	}
}

func (p *Problem) NumFields() int { return p.Coefficients.NumFields() }

func (p *Problem) NumDOFs() int { return p.Mesh.NumVertices() * p.NumFields() }

func (p *Problem) DOF(vertex, field int) int { return vertex*p.NumFields() + field }

// BoundaryDOFs are the Dirichlet unknowns at both mesh ends.
func (p *Problem) BoundaryDOFs() (dofs []int) {
	last := p.Mesh.NumVertices() - 1
	for j := 0; j < p.NumFields(); j++ {
		dofs = append(dofs, p.DOF(0, j), p.DOF(last, j))
	}
	return
}

type cellValues struct {
	xl, xr float64
	u0, u1 []float64 // vertex values per field
	du     []float64 // cell constant derivative per field
}

func (p *Problem) gather(x *mat.VecDense, k int, cv *cellValues) {
	cv.xl, cv.xr = p.Mesh.Cell(k)
	h := cv.xr - cv.xl
	for j := range cv.u0 {
		cv.u0[j] = x.AtVec(p.DOF(k, j))
		cv.u1[j] = x.AtVec(p.DOF(k+1, j))
		cv.du[j] = (cv.u1[j] - cv.u0[j]) / h
	}
}

func (p *Problem) newCellValues() *cellValues {
	nf := p.NumFields()
	return &cellValues{
		u0: make([]float64, nf),
		u1: make([]float64, nf),
		du: make([]float64, nf),
	}
}

func (p *Problem) checkIterate(x *mat.VecDense) error {
	if x.Len() != p.NumDOFs() {
		return fmt.Errorf("iterate has %d values, problem has %d unknowns", x.Len(), p.NumDOFs())
	}
	if p.transient() {
		if len(p.Previous) != p.NumFields() {
			return fmt.Errorf("have %d previous fields, problem has %d unknowns", len(p.Previous), p.NumFields())
		}
		for j, f := range p.Previous {
			if len(f.Values) != p.Mesh.NumVertices() {
				return fmt.Errorf("previous field %d has %d values on a mesh with %d vertices",
					j, len(f.Values), p.Mesh.NumVertices())
			}
		}
	}
	return nil
}

func (p *Problem) transient() bool { return p.TimeStep > 0 }

// previousDensity is exp(u_i^prev) at a quadrature point of cell k.
func (p *Problem) previousDensity(k, i int, qp fem.QuadPoint) float64 {
	u := p.Previous[i+1].Values
	return math.Exp(qp.Value(u[k], u[k+1]))
}

// Residual assembles the weak residual at x with the Dirichlet rows zeroed.
// Non-finite values are returned as is, backtracking treats them as growth.
func (p *Problem) Residual(x *mat.VecDense) (R *mat.VecDense, err error) {
	if err = p.checkIterate(x); err != nil {
		return
	}
	var (
		species = p.Coefficients.Species
		eps     = p.Coefficients.Permittivity
		ns      = len(species)
		r       = make([]float64, ns)
		c       = make([]float64, ns)
		cv      = p.newCellValues()
		data    = make([]float64, p.NumDOFs())
	)
	for k := 0; k < p.Mesh.NumCells(); k++ {
		p.gather(x, k, cv)
		for _, qp := range p.quad.Cell(cv.xl, cv.xr) {
			var rho float64
			if p.FixedCharge != nil {
				rho = p.FixedCharge(qp.X)
			}
			if p.Reactions != nil {
				p.Reactions(qp.X, r)
			} else {
				for i := range r {
					r[i] = 0
				}
			}
			for i, s := range species {
				c[i] = math.Exp(qp.Value(cv.u0[i+1], cv.u1[i+1]))
				rho += s.Valency * c[i]
				if p.transient() {
					r[i] -= (c[i] - p.previousDensity(k, i, qp)) / p.TimeStep
				}
			}
			for a := 0; a < 2; a++ {
				data[p.DOF(k+a, 0)] += qp.W * (eps*cv.du[0]*qp.DN[a] - rho*qp.N[a])
				for i, s := range species {
					flux := s.Diffusivity * c[i] * (cv.du[i+1] + s.Valency*cv.du[0])
					data[p.DOF(k+a, i+1)] += qp.W * (flux*qp.DN[a] - r[i]*qp.N[a])
				}
			}
		}
	}
	for _, dof := range p.BoundaryDOFs() {
		data[dof] = 0
	}
	R = mat.NewVecDense(len(data), data)
	return
}

// Jacobian assembles the derivative of Residual at x, identity rows on the
// Dirichlet unknowns. The result is block tridiagonal with NumFields blocks.
func (p *Problem) Jacobian(x *mat.VecDense) (J mat.Matrix, err error) {
	if err = p.checkIterate(x); err != nil {
		return
	}
	var (
		species = p.Coefficients.Species
		eps     = p.Coefficients.Permittivity
		nf      = p.NumFields()
		n       = p.NumDOFs()
		c       = make([]float64, len(species))
		cv      = p.newCellValues()
		A       = utils.NewDOK(n, n, "jacobian")
		dofs    = make([]int, 2*nf)
		L       = make([][]float64, 2*nf)
	)
	for a := range L {
		L[a] = make([]float64, 2*nf)
	}
	// local index of (vertex a, field j)
	li := func(a, j int) int { return a*nf + j }
	for k := 0; k < p.Mesh.NumCells(); k++ {
		p.gather(x, k, cv)
		for a := range L {
			dofs[a] = k*nf + a
			for b := range L[a] {
				L[a][b] = 0
			}
		}
		for _, qp := range p.quad.Cell(cv.xl, cv.xr) {
			for i := range species {
				c[i] = math.Exp(qp.Value(cv.u0[i+1], cv.u1[i+1]))
			}
			for a := 0; a < 2; a++ {
				for b := 0; b < 2; b++ {
					L[li(a, 0)][li(b, 0)] += qp.W * eps * qp.DN[b] * qp.DN[a]
					for i, s := range species {
						var (
							z  = s.Valency
							dc = s.Diffusivity * c[i]
						)
						L[li(a, 0)][li(b, i+1)] -= qp.W * z * c[i] * qp.N[b] * qp.N[a]
						L[li(a, i+1)][li(b, 0)] += qp.W * dc * z * qp.DN[b] * qp.DN[a]
						if !p.UseEAFE {
							L[li(a, i+1)][li(b, i+1)] += qp.W * dc *
								(qp.N[b]*(cv.du[i+1]+z*cv.du[0]) + qp.DN[b]) * qp.DN[a]
						}
						if p.transient() {
							L[li(a, i+1)][li(b, i+1)] += qp.W * c[i] / p.TimeStep * qp.N[b] * qp.N[a]
						}
					}
				}
			}
		}
		if p.UseEAFE {
			h := cv.xr - cv.xl
			for i, s := range species {
				E := fem.EAFELocal(s.Diffusivity, h, s.Valency*(cv.u1[0]-cv.u0[0]),
					math.Exp(cv.u0[i+1]), math.Exp(cv.u1[i+1]))
				for a := 0; a < 2; a++ {
					for b := 0; b < 2; b++ {
						L[li(a, i+1)][li(b, i+1)] += E[a][b]
					}
				}
			}
		}
		A.AddBlock(dofs, L)
	}
	for _, dof := range p.BoundaryDOFs() {
		A.SetIdentityRow(dof)
	}
	J = A.ToCSR()
	return
}

// Pack interleaves nodal fields into an iterate.
func (p *Problem) Pack(F []*fem.Function) *mat.VecDense {
	if len(F) != p.NumFields() {
		panic(fmt.Errorf("have %d fields, problem has %d", len(F), p.NumFields()))
	}
	x := mat.NewVecDense(p.NumDOFs(), nil)
	for j, f := range F {
		for k, v := range f.Values {
			x.SetVec(p.DOF(k, j), v)
		}
	}
	return x
}

// Fields splits an iterate into one nodal field per unknown.
func (p *Problem) Fields(x *mat.VecDense) (F []*fem.Function) {
	F = make([]*fem.Function, p.NumFields())
	for j := range F {
		F[j] = fem.NewFunction(p.Mesh)
		for k := range F[j].Values {
			F[j].Values[k] = x.AtVec(p.DOF(k, j))
		}
	}
	return
}

// TotalCharge is the nodal mobile charge density sum_i z_i exp(u_i).
func (p *Problem) TotalCharge(F []*fem.Function) (q *fem.Function) {
	q = fem.NewFunction(p.Mesh)
	for i, s := range p.Coefficients.Species {
		for k, u := range F[i+1].Values {
			q.Values[k] += s.Valency * math.Exp(u)
		}
	}
	return
}

// Energy is the free energy int eps/2 phi'^2 + sum_i exp(u_i)(u_i - 1) of
// the fields.
func (p *Problem) Energy(F []*fem.Function) (e float64) {
	eps := p.Coefficients.Permittivity
	for k := 0; k < p.Mesh.NumCells(); k++ {
		xl, xr := p.Mesh.Cell(k)
		dphi := F[0].CellGradient(k)
		for _, qp := range p.quad.Cell(xl, xr) {
			e += qp.W * 0.5 * eps * dphi * dphi
			for i := range p.Coefficients.Species {
				u := qp.Value(F[i+1].Values[k], F[i+1].Values[k+1])
				e += qp.W * math.Exp(u) * (u - 1)
			}
		}
	}
	return
}
