// Package resample converts waveforms between sample rates with a band-limited
// Kaiser-windowed sinc interpolator.
package resample

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vibe/algorithms/windowing"
)

// Error reports a degenerate resampling request
type Error struct {
	FromRate int
	ToRate   int
	Samples  int
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("resample %d samples %d Hz -> %d Hz: %s", e.Samples, e.FromRate, e.ToRate, e.Reason)
}

// Config controls the interpolation filter
type Config struct {
	Quality string `json:"quality" mapstructure:"quality"` // "fast" or "best"

	// Derived from Quality when zero
	ZeroCrossings int     `json:"zero_crossings" mapstructure:"zero_crossings"`
	Precision     int     `json:"precision" mapstructure:"precision"` // table entries per zero crossing
	Beta          float64 `json:"beta" mapstructure:"beta"`
	Rolloff       float64 `json:"rolloff" mapstructure:"rolloff"`
}

// DefaultConfig returns the high quality filter configuration
func DefaultConfig() *Config {
	return QualityConfig("best")
}

// QualityConfig returns filter parameters for a named quality
func QualityConfig(quality string) *Config {
	switch quality {
	case "fast":
		return &Config{Quality: "fast", ZeroCrossings: 16, Precision: 256, Beta: 8.555, Rolloff: 0.85}
	default:
		return &Config{Quality: "best", ZeroCrossings: 64, Precision: 512, Beta: 14.77, Rolloff: 0.945}
	}
}

// Resampler holds a precomputed half filter. It is read-only after
// construction and safe for concurrent use.
type Resampler struct {
	config *Config
	filter []float64 // windowed sinc sampled at 1/Precision zero-crossing steps, from the center outward
}

// NewResampler creates a resampler; a nil config selects DefaultConfig
func NewResampler(config *Config) *Resampler {
	if config == nil {
		config = DefaultConfig()
	}
	base := QualityConfig(config.Quality)
	if config.ZeroCrossings <= 0 {
		config.ZeroCrossings = base.ZeroCrossings
	}
	if config.Precision <= 0 {
		config.Precision = base.Precision
	}
	if config.Beta <= 0 {
		config.Beta = base.Beta
	}
	if config.Rolloff <= 0 || config.Rolloff > 1 {
		config.Rolloff = base.Rolloff
	}

	return &Resampler{
		config: config,
		filter: buildFilter(config),
	}
}

func buildFilter(config *Config) []float64 {
	half := config.ZeroCrossings * config.Precision
	window := windowing.NewKaiser(2*half+1, config.Beta, true).Coefficients()

	filter := make([]float64, half+1)
	for k := range filter {
		filter[k] = sinc(float64(k)/float64(config.Precision)) * window[half+k]
	}
	return filter
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// Resample converts signal from fromRate to toRate. The output holds
// floor(len(signal) * toRate / fromRate) samples. When the rates match the
// input slice is returned as-is.
func (r *Resampler) Resample(signal []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, &Error{FromRate: fromRate, ToRate: toRate, Samples: len(signal), Reason: "sample rates must be positive"}
	}
	if len(signal) == 0 {
		return nil, &Error{FromRate: fromRate, ToRate: toRate, Reason: "empty waveform"}
	}
	if fromRate == toRate {
		return signal, nil
	}

	ratio := float64(toRate) / float64(fromRate)
	outLen := int(int64(len(signal)) * int64(toRate) / int64(fromRate))
	if outLen <= 0 {
		return nil, &Error{FromRate: fromRate, ToRate: toRate, Samples: len(signal), Reason: "waveform too short for target rate"}
	}

	// Downsampling narrows the passband to the output Nyquist
	scale := math.Min(1, ratio) * r.config.Rolloff
	step := scale * float64(r.config.Precision)

	out := make([]float64, outLen)
	for i := range out {
		t := float64(i) * float64(fromRate) / float64(toRate)
		center := int(math.Floor(t))
		frac := t - float64(center)

		sum := 0.0
		// left wing, including the center tap
		for m := 0; center-m >= 0; m++ {
			w, ok := r.tap((frac + float64(m)) * step)
			if !ok {
				break
			}
			sum += signal[center-m] * w
		}
		// right wing
		for m := 1; center+m < len(signal); m++ {
			w, ok := r.tap((float64(m) - frac) * step)
			if !ok {
				break
			}
			sum += signal[center+m] * w
		}

		out[i] = sum * scale
	}

	return out, nil
}

// tap linearly interpolates the filter table at a fractional index
func (r *Resampler) tap(pos float64) (float64, bool) {
	last := len(r.filter) - 1
	if pos >= float64(last) {
		return 0, false
	}
	idx := int(pos)
	frac := pos - float64(idx)
	return r.filter[idx] + frac*(r.filter[idx+1]-r.filter[idx]), true
}
