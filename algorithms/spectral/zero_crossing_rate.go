package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-vibe/algorithms/common"
)

// ZeroCrossingRate measures how often a signal changes sign.
// High ZCR indicates noisy or bright content, low ZCR indicates tonal or quiet content.
//
// Zero is treated as its own sign: the step 1 -> 0 -> -1 counts as two half
// crossings, i.e. one full crossing, the same as 1 -> -1.
type ZeroCrossingRate struct{}

// NewZeroCrossingRate creates a new zero crossing rate calculator
func NewZeroCrossingRate() *ZeroCrossingRate {
	return &ZeroCrossingRate{}
}

// Crossings counts sign changes, where a full change between +1 and -1
// contributes 1 and a step to or from zero contributes 0.5.
func (zcr *ZeroCrossingRate) Crossings(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	total := 0.0
	prev := common.Sign(frame[0])
	for _, sample := range frame[1:] {
		current := common.Sign(sample)
		total += math.Abs(current - prev)
		prev = current
	}

	return total / 2
}

// Compute returns crossings divided by the sample count. The result lies in
// [0, 1): an alternating +1/-1 signal of n samples yields (n-1)/n.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}
	return zcr.Crossings(frame) / float64(len(frame))
}
