package spectral

import (
	"math"
	"math/bits"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// maxDirectFactor is the largest prime factor for which the mixed-radix real
// transform is used directly. Lengths with a larger prime factor go through
// Bluestein's chirp-z transform on a power-of-two grid.
const maxDirectFactor = 64

// FFT provides Fast Fourier Transform functionality for signals of any
// length. It holds no state between calls.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the non-negative frequency coefficients X[0..N/2] of a real
// signal of length N.
func (f *FFT) Compute(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return []complex128{}
	}
	if largestPrimeFactor(n) <= maxDirectFactor {
		return fourier.NewFFT(n).Coefficients(nil, x)
	}
	return bluestein(x)[:n/2+1]
}

// HalfMagnitude returns |X[k]| for k in [0, N/2), the non-negative frequency
// bins below Nyquist.
func (f *FFT) HalfMagnitude(x []float64) []float64 {
	half := len(x) / 2
	if half == 0 {
		return []float64{}
	}
	spectrum := f.Compute(x)

	magnitude := make([]float64, half)
	for k := 0; k < half; k++ {
		magnitude[k] = cmplx.Abs(spectrum[k])
	}
	return magnitude
}

// bluestein computes the full n-point DFT as a convolution with the chirp
// w[m] = exp(i*pi*m^2/n), evaluated with power-of-two complex transforms.
func bluestein(x []float64) []complex128 {
	n := len(x)
	m := 1 << bits.Len(uint(2*n-2))

	chirp := make([]complex128, n)
	for i := 0; i < n; i++ {
		// i*i mod 2n keeps the phase exact for long signals
		phase := math.Pi * float64((i*i)%(2*n)) / float64(n)
		chirp[i] = cmplx.Rect(1, phase)
	}

	a := make([]complex128, m)
	for i, v := range x {
		a[i] = complex(v, 0) * cmplx.Conj(chirp[i])
	}
	b := make([]complex128, m)
	b[0] = chirp[0]
	for i := 1; i < n; i++ {
		b[i] = chirp[i]
		b[m-i] = chirp[i]
	}

	t := fourier.NewCmplxFFT(m)
	fa := t.Coefficients(nil, a)
	fb := t.Coefficients(nil, b)
	for i := range fa {
		fa[i] *= fb[i]
	}
	conv := t.Sequence(nil, fa)

	scale := complex(1/float64(m), 0)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		out[k] = conv[k] * scale * cmplx.Conj(chirp[k])
	}
	return out
}

func largestPrimeFactor(n int) int {
	largest := 1
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			largest = p
			n /= p
		}
	}
	if n > 1 {
		largest = n
	}
	return largest
}
