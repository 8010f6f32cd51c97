package pcm

import "math"

// Mix sums two sample buffers elementwise with clamping to the int16 range.
// The shorter buffer is padded with silence.
func Mix(a, b []int16) []int16 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sa, sb int32
		if i < len(a) {
			sa = int32(a[i])
		}
		if i < len(b) {
			sb = int32(b[i])
		}
		sum := sa + sb
		if sum > math.MaxInt16 {
			sum = math.MaxInt16
		} else if sum < math.MinInt16 {
			sum = math.MinInt16
		}
		out[i] = int16(sum)
	}
	return out
}

// Level computes the RMS loudness of a chunk on a 0..100 scale for UI
// metering.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	level := rms / float64(math.MaxInt16) * 100.0
	if level > 100.0 {
		level = 100.0
	}
	return level
}
