package temporal

import (
	"github.com/RyanBlaney/sonido-vibe/algorithms/common"
)

// Energy computes loudness descriptors in the time domain
type Energy struct{}

// NewEnergy creates a new energy calculator
func NewEnergy() *Energy {
	return &Energy{}
}

// ComputeRMS returns the root-mean-square amplitude of the whole signal.
// An empty signal has zero energy.
func (e *Energy) ComputeRMS(signal []float64) float64 {
	return common.RMS(signal)
}
