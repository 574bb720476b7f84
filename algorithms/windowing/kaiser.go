package windowing

import (
	"math"
)

// Kaiser represents a Kaiser window function
type Kaiser struct {
	size         int
	beta         float64
	symmetric    bool
	coefficients []float64
}

// NewKaiser creates a new Kaiser window
func NewKaiser(size int, beta float64, symmetric bool) *Kaiser {
	k := &Kaiser{
		size:      size,
		beta:      beta,
		symmetric: symmetric,
	}
	k.generate()
	return k
}

// generate creates Kaiser window coefficients
func (k *Kaiser) generate() {
	k.coefficients = make([]float64, k.size)
	if k.size == 1 {
		k.coefficients[0] = 1
		return
	}

	denominator := float64(k.size)
	if k.symmetric {
		denominator = float64(k.size - 1)
	}

	i0Beta := BesselI0(k.beta)
	for i := 0; i < k.size; i++ {
		arg := 2.0*float64(i)/denominator - 1.0
		k.coefficients[i] = BesselI0(k.beta*math.Sqrt(math.Max(0, 1-arg*arg))) / i0Beta
	}
}

// BesselI0 computes the zero-order modified Bessel function of the first kind
// by series expansion
func BesselI0(x float64) float64 {
	sum := 1.0
	term := 1.0

	for i := 1; i < 50; i++ {
		term *= (x / (2.0 * float64(i))) * (x / (2.0 * float64(i)))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}

	return sum
}

// Coefficients returns a copy of the window coefficients
func (k *Kaiser) Coefficients() []float64 {
	coeffs := make([]float64, len(k.coefficients))
	copy(coeffs, k.coefficients)
	return coeffs
}

// Size returns the window size
func (k *Kaiser) Size() int {
	return k.size
}

// Beta returns the Kaiser beta parameter
func (k *Kaiser) Beta() float64 {
	return k.beta
}
