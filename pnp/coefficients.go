// Package pnp assembles and solves the Poisson-Nernst-Planck system in
// log-density variables with P1 elements, and drives the adaptive
// solve, mark, refine loop.
package pnp

import (
	"fmt"
)

// Species is a charged (or neutral) mobile species.
type Species struct {
	Name        string
	Valency     float64
	Diffusivity float64
}

// Coefficients are the physical constants of one problem. Field 0 is the
// electrostatic potential, field i+1 is the log-density of Species[i].
type Coefficients struct {
	Permittivity float64
	Species      []Species
}

// DefaultCoefficients is a unit cation/anion pair in a unit permittivity
// medium.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Permittivity: 1,
		Species: []Species{
			{Name: "cation", Valency: 1, Diffusivity: 1},
			{Name: "anion", Valency: -1, Diffusivity: 1},
		},
	}
}

func (c Coefficients) NumFields() int { return 1 + len(c.Species) }

// FieldNames labels the fields in dof order.
func (c Coefficients) FieldNames() (names []string) {
	names = []string{"potential"}
	for i, s := range c.Species {
		if len(s.Name) == 0 {
			names = append(names, fmt.Sprintf("species%d", i+1))
			continue
		}
		names = append(names, s.Name)
	}
	return
}

func (c Coefficients) Validate() error {
	if !(c.Permittivity > 0) {
		return fmt.Errorf("permittivity must be positive, have %v", c.Permittivity)
	}
	if len(c.Species) == 0 {
		return fmt.Errorf("at least one species is required")
	}
	for i, s := range c.Species {
		if !(s.Diffusivity > 0) {
			return fmt.Errorf("species %d (%s): diffusivity must be positive, have %v",
				i+1, s.Name, s.Diffusivity)
		}
	}
	return nil
}
