package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vibe/algorithms/common"
)

// WAVE format tags
const (
	formatPCM        = 0x0001
	formatIEEEFloat  = 0x0003
	formatExtensible = 0xFFFE
)

// ErrUnsupportedFormat marks a well-formed RIFF/WAVE file whose sample
// encoding cannot be decoded natively
var ErrUnsupportedFormat = errors.New("unsupported wav encoding")

// wavInfo is the fmt chunk of a RIFF/WAVE file with WAVE_FORMAT_EXTENSIBLE
// resolved to its sub-format tag, plus the data chunk
type wavInfo struct {
	Format        uint16
	Extensible    bool
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte
}

// readWAVInfo walks the RIFF chunks up to the data chunk. A data chunk that
// claims more bytes than are present is cut to what is there.
func readWAVInfo(data []byte) (*wavInfo, error) {
	if !isRIFFWave(data) {
		return nil, &DecodeError{Op: "header", Err: errors.New("missing RIFF/WAVE header")}
	}

	var info wavInfo
	hasFmt := false
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		size = min(size, len(body))

		switch id {
		case "fmt ":
			if err := info.parseFormat(body[:size]); err != nil {
				return nil, &DecodeError{Op: "header", Err: err}
			}
			hasFmt = true
		case "data":
			if !hasFmt {
				return nil, &DecodeError{Op: "header", Err: errors.New("data chunk before fmt chunk")}
			}
			info.Data = body[:size]
			return &info, nil
		}

		// chunks are padded to even sizes
		next := 8 + size + size%2
		if next > len(rest) {
			break
		}
		rest = rest[next:]
	}

	if !hasFmt {
		return nil, &DecodeError{Op: "header", Err: errors.New("missing fmt chunk")}
	}
	return nil, &DecodeError{Op: "header", Err: errors.New("missing data chunk")}
}

func (w *wavInfo) parseFormat(chunk []byte) error {
	if len(chunk) < 16 {
		return fmt.Errorf("fmt chunk too short: %d bytes", len(chunk))
	}
	w.Format = binary.LittleEndian.Uint16(chunk[0:2])
	w.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
	w.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
	w.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))

	if w.Format == formatExtensible {
		// cbSize, valid bits and channel mask precede the sub-format GUID,
		// whose first two bytes are the plain format tag
		if len(chunk) < 40 {
			return fmt.Errorf("extensible fmt chunk too short: %d bytes", len(chunk))
		}
		w.Format = binary.LittleEndian.Uint16(chunk[24:26])
		w.Extensible = true
	}

	if w.Channels == 0 || w.SampleRate == 0 {
		return fmt.Errorf("invalid format: %d channels at %d Hz", w.Channels, w.SampleRate)
	}
	return nil
}

// plain reports whether go-dsp's reader handles the encoding as is
func (w *wavInfo) plain() bool {
	if w.Extensible {
		return false
	}
	switch w.Format {
	case formatPCM:
		return w.BitsPerSample == 8 || w.BitsPerSample == 16
	case formatIEEEFloat:
		return w.BitsPerSample == 32
	}
	return false
}

// decodeSamples converts the data chunk to float64 around zero for every
// integer and float width the decoder supports. Scaling is left to peak
// normalization.
func decodeSamples(info *wavInfo) ([]float64, string, error) {
	var (
		format string
		sample func([]byte) float64
	)
	switch {
	case info.Format == formatPCM && info.BitsPerSample == 8:
		format = "pcm8"
		sample = func(b []byte) float64 { return float64(b[0]) - 128 }
	case info.Format == formatPCM && info.BitsPerSample == 16:
		format = "pcm16"
		sample = func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }
	case info.Format == formatPCM && info.BitsPerSample == 24:
		format = "pcm24"
		sample = func(b []byte) float64 {
			v := int32(uint32(b[0])<<8 | uint32(b[1])<<16 | uint32(b[2])<<24)
			return float64(v >> 8)
		}
	case info.Format == formatPCM && info.BitsPerSample == 32:
		format = "pcm32"
		sample = func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }
	case info.Format == formatIEEEFloat && info.BitsPerSample == 32:
		format = "float32"
		sample = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case info.Format == formatIEEEFloat && info.BitsPerSample == 64:
		format = "float64"
		sample = func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	default:
		return nil, "", &DecodeError{
			Op:  "format",
			Err: fmt.Errorf("%w: format 0x%04x with %d bits per sample", ErrUnsupportedFormat, info.Format, info.BitsPerSample),
		}
	}

	width := info.BitsPerSample / 8
	n := len(info.Data) / width
	n -= n % info.Channels
	if n <= 0 {
		return nil, "", &DecodeError{Op: "samples", Err: ErrNoSamples}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = sample(info.Data[i*width : (i+1)*width])
	}
	if info.Format == formatIEEEFloat && !common.IsFinite(out) {
		return nil, "", &DecodeError{Op: "samples", Err: errors.New("non-finite float sample")}
	}
	return out, format, nil
}
