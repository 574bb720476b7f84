package extractors

import (
	"github.com/RyanBlaney/sonido-vibe/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vibe/algorithms/temporal"
	"github.com/RyanBlaney/sonido-vibe/logging"
)

// FeatureVector holds the three whole-clip descriptors the environment rules
// run on
type FeatureVector struct {
	Energy             float64 `json:"energy"`             // RMS amplitude
	ZeroCrossingRate   float64 `json:"zcr"`                // crossings per sample, [0, 1)
	SpectralCentroidHz float64 `json:"spectral_centroid"` // magnitude-weighted mean frequency
}

// Extractor computes a FeatureVector from a mono waveform. It holds no state
// between calls.
type Extractor struct {
	energy *temporal.Energy
	zcr    *spectral.ZeroCrossingRate
	logger logging.Logger
}

// NewExtractor creates a feature extractor
func NewExtractor() *Extractor {
	return &Extractor{
		energy: temporal.NewEnergy(),
		zcr:    spectral.NewZeroCrossingRate(),
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}
}

// Extract computes energy, zero crossing rate and spectral centroid over the
// whole clip. An empty waveform yields the zero vector.
func (e *Extractor) Extract(pcm []float64, sampleRate int) FeatureVector {
	if len(pcm) == 0 {
		return FeatureVector{}
	}

	features := FeatureVector{
		Energy:             e.energy.ComputeRMS(pcm),
		ZeroCrossingRate:   e.zcr.Compute(pcm),
		SpectralCentroidHz: spectral.NewSpectralCentroid(sampleRate).ComputeSignal(pcm),
	}

	e.logger.Debug("Features extracted", logging.Fields{
		"function":          "Extract",
		"samples":           len(pcm),
		"sample_rate":       sampleRate,
		"energy":            features.Energy,
		"zcr":               features.ZeroCrossingRate,
		"spectral_centroid": features.SpectralCentroidHz,
	})

	return features
}
