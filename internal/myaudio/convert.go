package myaudio

import (
	"math"

	"github.com/tphakala/go-porcupine/internal/errors"
)

// getAudioDivisor returns the divisor that normalises integer samples of
// bitDepth bits to [-1, 1].
func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}

// downmix averages interleaved channels into mono samples normalised by divisor.
func downmix(interleaved []int, channels int, divisor float64) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(interleaved[i*channels+c])
		}
		mono[i] = sum / float64(channels) / divisor
	}
	return mono
}

// floatToPCM16 converts normalised samples to 16-bit, clipping out of range values.
func floatToPCM16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(s * 32767.0)
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}
