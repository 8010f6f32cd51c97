package audio

import (
	"github.com/gen2brain/malgo"

	"meetscribe/internal/pcm"
)

// CanonicalSampleRate is the rate every consumer of capture chunks agrees to
// receive: 16 kHz mono signed 16-bit PCM.
const CanonicalSampleRate = 16000

// streamFormat is the negotiated format a hardware stream actually delivers.
// Selected once at device-open time and invariant for the stream's lifetime.
type streamFormat struct {
	encoding   malgo.FormatType
	channels   int
	sampleRate int
}

// selectFormat picks the best of the device's reported data formats. Among
// formats that offer the canonical rate, integer 16-bit beats float and mono
// beats multi-channel. When the device does not offer 16 kHz at all, the
// first reported format wins and the caller must resample: miniaudio does
// not flag which entry is the device's default, so the head of the list
// stands in for it.
func selectFormat(formats []malgo.DataFormat) streamFormat {
	best := streamFormat{}
	bestScore := 0
	for _, f := range formats {
		if f.SampleRate != CanonicalSampleRate {
			continue
		}
		score := 1
		if f.Format == malgo.FormatS16 {
			score += 2
		}
		if f.Channels == 1 {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = streamFormat{
				encoding:   f.Format,
				channels:   int(f.Channels),
				sampleRate: CanonicalSampleRate,
			}
		}
	}
	if bestScore > 0 {
		return best
	}

	if len(formats) > 0 {
		f := formats[0]
		return streamFormat{
			encoding:   f.Format,
			channels:   int(f.Channels),
			sampleRate: int(f.SampleRate),
		}
	}

	// Nothing reported; ask for the canonical format and let the backend
	// convert.
	return streamFormat{encoding: malgo.FormatS16, channels: 1, sampleRate: CanonicalSampleRate}
}

// convertChunk normalizes one hardware callback buffer to the canonical
// chunk format: native encoding to s16, downmix to mono, resample to 16 kHz
// when the stream rate differs. Runs on the driver's callback thread.
func convertChunk(input []byte, f streamFormat) []int16 {
	var samples []int16
	switch f.encoding {
	case malgo.FormatF32:
		samples = pcm.FromF32LE(input)
	case malgo.FormatU8:
		samples = pcm.FromU8(input)
	default:
		samples = pcm.FromS16LE(input)
	}
	mono := pcm.Downmix(samples, f.channels)
	if f.sampleRate != CanonicalSampleRate {
		mono = pcm.ResampleLinear(mono, f.sampleRate, CanonicalSampleRate)
	}
	return mono
}
