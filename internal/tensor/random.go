package tensor

import "math"

// Zero fills t with zero values.
func Zero(t *Tensor) {
	for i := range t.data {
		t.data[i] = 0
	}
}

// Fill sets every element of t to v.
func Fill(t *Tensor, v float64) {
	forEachIndex(t.shape, func(idx []int) {
		setAt(t.data, t.strides, t.dtype, idx, v)
	})
}

// RandSource is the minimal source of uniform randomness the initializers
// need, satisfied by *rand.Rand from the standard library.
type RandSource interface {
	Float64() float64
}

// FillUniform fills t with values drawn uniformly from [lo, hi).
func FillUniform(t *Tensor, src RandSource, lo, hi float64) {
	span := hi - lo
	forEachIndex(t.shape, func(idx []int) {
		v := lo + src.Float64()*span
		setAt(t.data, t.strides, t.dtype, idx, v)
	})
}

// FillNormal fills t with values drawn from a normal distribution with the
// given mean and standard deviation, using the Box-Muller transform driven
// by src's uniform samples.
func FillNormal(t *Tensor, src RandSource, mean, stddev float64) {
	var spare float64
	haveSpare := false
	forEachIndex(t.shape, func(idx []int) {
		var z float64
		if haveSpare {
			z = spare
			haveSpare = false
		} else {
			u1 := src.Float64()
			if u1 < 1e-300 {
				u1 = 1e-300
			}
			u2 := src.Float64()
			r := math.Sqrt(-2 * math.Log(u1))
			z = r * math.Cos(2*math.Pi*u2)
			spare = r * math.Sin(2*math.Pi*u2)
			haveSpare = true
		}
		setAt(t.data, t.strides, t.dtype, idx, mean+stddev*z)
	})
}
