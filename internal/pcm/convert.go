// Package pcm holds the stateless sample-conversion primitives shared by the
// capture pipeline and the streaming client. Everything here is allocation
// light and failure free: malformed input degrades to identity or empty
// output so the functions stay safe to call from a real-time audio callback.
package pcm

import (
	"encoding/binary"
	"math"
)

// Downmix reduces interleaved multi-channel samples to mono by integer
// averaging per frame, truncating toward zero. A trailing partial frame is
// dropped. channels <= 1 is the identity.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// FloatToInt16 clamps a float sample to [-1, 1] and scales it onto the
// signed 16-bit range, truncating.
func FloatToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * math.MaxInt16)
}

// Uint16ToInt16 recenters an unsigned sample so the unsigned range maps onto
// the signed range.
func Uint16ToInt16(s uint16) int16 {
	return int16(int32(s) - 32768)
}

// ResampleLinear converts samples between two rates with linear
// interpolation. It is causal with zero lookahead, trading spectral accuracy
// for bounded latency inside the hardware callback. Equal or degenerate
// rates and empty input are the identity.
func ResampleLinear(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(math.Ceil(float64(len(samples)) / ratio))
	out := make([]int16, 0, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		var s float64
		if idx+1 < len(samples) {
			s = float64(samples[idx])*(1.0-frac) + float64(samples[idx+1])*frac
		} else {
			if idx >= len(samples) {
				idx = len(samples) - 1
			}
			s = float64(samples[idx])
		}
		out = append(out, int16(math.Round(s)))
	}
	return out
}

// FromS16LE reinterprets little-endian 16-bit PCM bytes as samples. A
// trailing odd byte is dropped.
func FromS16LE(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// FromF32LE converts little-endian 32-bit float PCM bytes to 16-bit samples.
func FromF32LE(data []byte) []int16 {
	out := make([]int16, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = FloatToInt16(math.Float32frombits(bits))
	}
	return out
}

// FromU8 converts unsigned 8-bit PCM bytes to 16-bit samples by recentering
// around the 8-bit midpoint and scaling.
func FromU8(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = int16(int(b)-128) << 8
	}
	return out
}

// Int16ToBytes encodes samples as little-endian 16-bit PCM bytes, the wire
// encoding the streaming protocol expects.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
