package spectral

import (
	"gonum.org/v1/gonum/floats"
)

// SpectralCentroid computes the spectral centroid (center of mass) of a spectrum
type SpectralCentroid struct {
	sampleRate int
	fft        *FFT
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
		fft:        NewFFT(),
	}
}

// Compute calculates the magnitude-weighted mean frequency of a half spectrum
// taken from an n-point transform. Bin k sits at k*sampleRate/n Hz.
func (sc *SpectralCentroid) Compute(magnitude []float64, n int) float64 {
	if len(magnitude) == 0 || n <= 0 {
		return 0.0
	}

	denominator := floats.Sum(magnitude)
	if denominator == 0 {
		return 0
	}

	return floats.Dot(sc.frequencyBins(len(magnitude), n), magnitude) / denominator
}

// ComputeSignal transforms the whole signal and returns its centroid in Hz
func (sc *SpectralCentroid) ComputeSignal(signal []float64) float64 {
	if len(signal) == 0 || sc.sampleRate <= 0 {
		return 0.0
	}
	return sc.Compute(sc.fft.HalfMagnitude(signal), len(signal))
}

func (sc *SpectralCentroid) frequencyBins(numBins, n int) []float64 {
	bins := make([]float64, numBins)
	for k := 0; k < numBins; k++ {
		bins[k] = float64(k) * float64(sc.sampleRate) / float64(n)
	}
	return bins
}
