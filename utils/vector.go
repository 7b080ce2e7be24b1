package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// VecData returns the backing slice of a VecDense, copying only when the
// vector is strided.
func VecData(v *mat.VecDense) []float64 {
	raw := v.RawVector()
	if raw.Inc == 1 {
		return raw.Data[:v.Len()]
	}
	d := make([]float64, v.Len())
	for i := range d {
		d[i] = v.AtVec(i)
	}
	return d
}

func NormL2(v *mat.VecDense) float64 {
	return floats.Norm(VecData(v), 2)
}

func NormMax(v *mat.VecDense) float64 {
	if v.Len() == 0 {
		return 0
	}
	return floats.Norm(VecData(v), math.Inf(1))
}
