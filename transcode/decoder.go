package transcode

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/algorithms/common"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/mjibson/go-dsp/wav"
)

// AudioData represents a decoded, mono, peak-normalized waveform
type AudioData struct {
	PCM            []float64     `json:"-"`
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	Duration       time.Duration `json:"duration"`
	SourceChannels int           `json:"source_channels"`
	SourceFormat   string        `json:"source_format"` // "pcm8" ... "pcm32", "float32", "float64"
}

// DecodeError is returned for any payload that cannot be turned into a waveform
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyPayload = errors.New("empty audio payload")
	ErrNoSamples    = errors.New("no audio samples in data chunk")
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// FFmpegPath enables transcoding of non-WAV containers when set. Empty
	// means only RIFF/WAVE input is accepted.
	FFmpegPath string        `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"` // Timeout for ffmpeg operations
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath: "",
		Timeout:    30 * time.Second,
	}
}

// Decoder turns base64 or raw WAV payloads into AudioData
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeBase64 decodes a standard-alphabet base64 string holding a WAV file
func (d *Decoder) DecodeBase64(ctx context.Context, payload string) (*AudioData, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, &DecodeError{Op: "base64", Err: err}
	}
	return d.DecodeBytes(ctx, raw)
}

// DecodeBytes decodes an in-memory audio file
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, &DecodeError{Op: "read", Err: ErrEmptyPayload}
	}

	transcoded := false
	if !isRIFFWave(data) && d.config.FFmpegPath != "" {
		logger.Debug("Payload is not RIFF/WAVE, transcoding with ffmpeg")
		converted, err := d.transcodeWithFFmpeg(ctx, data)
		if err != nil {
			return nil, &DecodeError{Op: "ffmpeg", Err: err}
		}
		data = converted
		transcoded = true
	}

	audio, err := parseWAV(data)
	if errors.Is(err, ErrUnsupportedFormat) && d.config.FFmpegPath != "" && !transcoded {
		logger.Debug("WAV encoding not supported, transcoding with ffmpeg", logging.Fields{"error": err.Error()})
		converted, ferr := d.transcodeWithFFmpeg(ctx, data)
		if ferr != nil {
			return nil, &DecodeError{Op: "ffmpeg", Err: ferr}
		}
		audio, err = parseWAV(converted)
	}
	if err != nil {
		logger.Debug("WAV parse failed", logging.Fields{"error": err.Error()})
		return nil, err
	}

	logger.Debug("Audio decoded", logging.Fields{
		"sample_rate":     audio.SampleRate,
		"source_channels": audio.SourceChannels,
		"source_format":   audio.SourceFormat,
		"samples":         len(audio.PCM),
	})

	return audio, nil
}

func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// parseWAV reads the container, converts samples to float64, downmixes by
// per-frame mean and peak-normalizes
func parseWAV(data []byte) (*AudioData, error) {
	info, err := readWAVInfo(data)
	if err != nil {
		return nil, err
	}

	var (
		interleaved []float64
		format      string
	)
	if info.plain() {
		interleaved, format, err = readPlainSamples(data)
	} else {
		interleaved, format, err = decodeSamples(info)
	}
	if err != nil {
		return nil, err
	}

	mono := common.Downmix(interleaved, info.Channels)
	pcm := common.PeakNormalize(mono)

	return &AudioData{
		PCM:            pcm,
		SampleRate:     info.SampleRate,
		Channels:       1,
		Duration:       time.Duration(len(pcm)) * time.Second / time.Duration(info.SampleRate),
		SourceChannels: info.Channels,
		SourceFormat:   format,
	}, nil
}

// readPlainSamples decodes 8/16-bit PCM and 32-bit float with go-dsp
func readPlainSamples(data []byte) (samples []float64, format string, err error) {
	// go-dsp divides by header fields without validating them
	defer func() {
		if r := recover(); r != nil {
			samples, format = nil, ""
			err = &DecodeError{Op: "header", Err: fmt.Errorf("malformed wav header: %v", r)}
		}
	}()

	reader := bytes.NewReader(data)
	w, err := wav.New(reader)
	if err != nil {
		return nil, "", &DecodeError{Op: "header", Err: err}
	}

	// Streaming writers leave the data size unset; trust the bytes actually present
	bytesPerSample := int(w.BitsPerSample) / 8
	n := w.Samples
	if bytesPerSample > 0 {
		n = min(n, reader.Len()/bytesPerSample)
	}
	n -= n % int(w.NumChannels)
	if n <= 0 {
		return nil, "", &DecodeError{Op: "samples", Err: ErrNoSamples}
	}

	raw, err := w.ReadSamples(n)
	if err != nil {
		return nil, "", &DecodeError{Op: "samples", Err: err}
	}

	samples, format, err = toFloat64(raw)
	if err != nil {
		return nil, "", &DecodeError{Op: "samples", Err: err}
	}
	return samples, format, nil
}

// toFloat64 converts go-dsp sample slices to float64 around zero. Scaling is
// irrelevant because the result is peak-normalized afterwards.
func toFloat64(raw any) ([]float64, string, error) {
	switch s := raw.(type) {
	case []uint8:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v) - 128
		}
		return out, "pcm8", nil
	case []int16:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, "pcm16", nil
	case []float32:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		if !common.IsFinite(out) {
			return nil, "", errors.New("non-finite float sample")
		}
		return out, "float32", nil
	default:
		return nil, "", fmt.Errorf("unsupported sample type %T", raw)
	}
}

// transcodeWithFFmpeg pipes an arbitrary container through ffmpeg and returns
// 16-bit PCM WAV bytes
func (d *Decoder) transcodeWithFFmpeg(ctx context.Context, data []byte) ([]byte, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "transcodeWithFFmpeg",
	})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-v", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "wav",
		"-acodec", "pcm_s16le",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFmpeg transcode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffmpeg transcode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg transcode failed: %w", err)
	}

	logger.Debug("FFmpeg transcode completed", logging.Fields{
		"output_bytes": len(output),
		"decode_time":  time.Since(startTime).Seconds(),
	})

	return output, nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() map[string]any {
	return map[string]any{
		"ffmpeg_path": d.config.FFmpegPath,
		"timeout":     d.config.Timeout,
	}
}
