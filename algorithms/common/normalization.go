package common

import (
	"gonum.org/v1/gonum/floats"
)

// PeakNormalize scales the signal so that its largest absolute sample is 1.
// An all-zero (or empty) signal is returned unchanged.
func PeakNormalize(signal []float64) []float64 {
	peak := PeakAbs(signal)
	if peak == 0 {
		return signal
	}

	normalized := make([]float64, len(signal))
	copy(normalized, signal)
	floats.Scale(1/peak, normalized)
	return normalized
}

// Downmix averages interleaved multi-channel samples into a mono signal.
// A trailing partial frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		frame := interleaved[i*channels : (i+1)*channels]
		mono[i] = floats.Sum(frame) / float64(channels)
	}
	return mono
}
