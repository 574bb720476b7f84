// Package wavtest builds in-memory WAV files for tests.
package wavtest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// subformatGUIDTail follows the format tag in KSDATAFORMAT_SUBTYPE GUIDs
var subformatGUIDTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// Sine returns n samples of a sine wave
func Sine(freq, amplitude float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Interleave zips per-channel sample slices into one interleaved slice.
// All channels must have the same length.
func Interleave(channels ...[]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float64, 0, n*len(channels))
	for i := 0; i < n; i++ {
		for _, ch := range channels {
			out = append(out, ch[i])
		}
	}
	return out
}

// PCM16 encodes interleaved samples in [-1, 1] as 16-bit PCM
func PCM16(interleaved []float64, sampleRate, channels int) []byte {
	data := new(bytes.Buffer)
	for _, v := range interleaved {
		binary.Write(data, binary.LittleEndian, int16(math.Round(clip(v)*math.MaxInt16)))
	}
	return container(formatPCM, 16, sampleRate, channels, data.Bytes())
}

// PCM8 encodes interleaved samples in [-1, 1] as unsigned 8-bit PCM
func PCM8(interleaved []float64, sampleRate, channels int) []byte {
	data := make([]byte, len(interleaved))
	for i, v := range interleaved {
		data[i] = uint8(math.Round(128 + clip(v)*127))
	}
	return container(formatPCM, 8, sampleRate, channels, data)
}

// Float32 encodes interleaved samples as 32-bit IEEE float
func Float32(interleaved []float64, sampleRate, channels int) []byte {
	data := new(bytes.Buffer)
	for _, v := range interleaved {
		binary.Write(data, binary.LittleEndian, float32(v))
	}
	return container(formatFloat, 32, sampleRate, channels, data.Bytes())
}

// PCM24 encodes interleaved samples in [-1, 1] as packed 24-bit PCM
func PCM24(interleaved []float64, sampleRate, channels int) []byte {
	data := make([]byte, 0, 3*len(interleaved))
	for _, v := range interleaved {
		x := uint32(int32(math.Round(clip(v) * (1<<23 - 1))))
		data = append(data, byte(x), byte(x>>8), byte(x>>16))
	}
	return container(formatPCM, 24, sampleRate, channels, data)
}

// PCM32 encodes interleaved samples in [-1, 1] as 32-bit integer PCM
func PCM32(interleaved []float64, sampleRate, channels int) []byte {
	data := new(bytes.Buffer)
	for _, v := range interleaved {
		binary.Write(data, binary.LittleEndian, int32(math.Round(clip(v)*math.MaxInt32)))
	}
	return container(formatPCM, 32, sampleRate, channels, data.Bytes())
}

// Float64 encodes interleaved samples as 64-bit IEEE float
func Float64(interleaved []float64, sampleRate, channels int) []byte {
	data := new(bytes.Buffer)
	for _, v := range interleaved {
		binary.Write(data, binary.LittleEndian, v)
	}
	return container(formatFloat, 64, sampleRate, channels, data.Bytes())
}

// ExtensiblePCM16 encodes interleaved samples as 16-bit PCM behind a
// WAVE_FORMAT_EXTENSIBLE fmt chunk
func ExtensiblePCM16(interleaved []float64, sampleRate, channels int) []byte {
	data := new(bytes.Buffer)
	for _, v := range interleaved {
		binary.Write(data, binary.LittleEndian, int16(math.Round(clip(v)*math.MaxInt16)))
	}

	blockAlign := channels * 2
	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(60+data.Len()))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(40))
	binary.Write(buf, binary.LittleEndian, uint16(formatExtensible))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	binary.Write(buf, binary.LittleEndian, uint16(22)) // cbSize
	binary.Write(buf, binary.LittleEndian, uint16(16)) // valid bits
	binary.Write(buf, binary.LittleEndian, uint32(0))  // channel mask
	binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	buf.Write(subformatGUIDTail)

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// Base64 encodes a WAV file the way API clients send it
func Base64(wav []byte) string {
	return base64.StdEncoding.EncodeToString(wav)
}

func clip(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func container(format, bits, sampleRate, channels int, data []byte) []byte {
	blockAlign := channels * bits / 8
	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(format))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bits))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
