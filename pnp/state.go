package pnp

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gopnp/adapt"
	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/mesh1D"
)

// State is a mesh and the PNP fields on it, it implements adapt.State.
type State struct {
	Mesh         *mesh1D.Mesh
	Fields       []*fem.Function
	Coefficients Coefficients
	// Recovery solves the mass matrix systems of gradient recovery, a
	// scalar block tridiagonal solver when nil.
	Recovery linsolve.Solver
}

func NewState(m *mesh1D.Mesh, F []*fem.Function, c Coefficients) (s *State, err error) {
	if len(F) != c.NumFields() {
		err = fmt.Errorf("have %d fields for %d unknowns per vertex", len(F), c.NumFields())
		return
	}
	for j, f := range F {
		if len(f.Values) != m.NumVertices() {
			err = fmt.Errorf("field %d has %d values on a mesh with %d vertices",
				j, len(f.Values), m.NumVertices())
			return
		}
	}
	s = &State{Mesh: m, Fields: F, Coefficients: c}
	return
}

func (s *State) NumCells() int { return s.Mesh.NumCells() }

// Potentials returns the functions whose gradient mismatch makes up the
// indicator: the entropic potentials z_i phi + u_i, or phi alone.
func (s *State) Potentials(kind adapt.Indicator) (psi []*fem.Function) {
	phi := s.Fields[0]
	if kind == adapt.ElectricField {
		return []*fem.Function{phi}
	}
	for i, sp := range s.Coefficients.Species {
		psi = append(psi, s.Fields[i+1].Copy().AddScaled(sp.Valency, phi))
	}
	return
}

// Indicators is sqrt(sum_psi int_K (G psi - psi')^2) per cell, G being the
// L2 recovered gradient.
func (s *State) Indicators(kind adapt.Indicator) (eta []float64, err error) {
	var (
		solver = s.Recovery
		g      *fem.Function
	)
	if solver == nil {
		solver = &linsolve.BlockTridiagonal{BlockSize: 1}
	}
	eta = make([]float64, s.NumCells())
	for _, psi := range s.Potentials(kind) {
		if g, err = fem.RecoverGradient(psi, solver); err != nil {
			return
		}
		for k, e := range fem.GradientMismatch(psi, g) {
			eta[k] += e
		}
	}
	for k := range eta {
		eta[k] = math.Sqrt(eta[k])
	}
	return
}

// Refine bisects the marked cells and interpolates every field onto the new
// mesh. Cells too small to bisect report adapt.ErrCannotRefine.
func (s *State) Refine(markers []bool) (next adapt.State, err error) {
	var (
		m *mesh1D.Mesh
	)
	if m, err = s.Mesh.Refine(markers); err != nil {
		if errors.Is(err, mesh1D.ErrCellTooSmall) {
			err = fmt.Errorf("%w: %w", adapt.ErrCannotRefine, err)
		}
		return
	}
	F := make([]*fem.Function, len(s.Fields))
	for j, f := range s.Fields {
		F[j] = f.Transfer(m)
	}
	next = &State{
		Mesh:         m,
		Fields:       F,
		Coefficients: s.Coefficients,
		Recovery:     s.Recovery,
	}
	return
}
