package myaudio

import (
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/tphakala/go-porcupine/internal/errors"
)

// Resampler converts mono audio between sample rates. It keeps filter state
// across calls so a stream can be fed in arbitrary chunks.
type Resampler struct {
	resampler resampling.Resampler // nil when rates match
}

// NewResampler creates a Resampler from inputRate to outputRate.
func NewResampler(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, errors.Newf("invalid sample rates %d -> %d", inputRate, outputRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if inputRate == outputRate {
		return &Resampler{}, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inputRate),
		OutputRate: float64(outputRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "create_resampler").
			Context("input_rate", inputRate).
			Context("output_rate", outputRate).
			Build()
	}
	return &Resampler{resampler: r}, nil
}

// Process resamples one chunk of normalised samples.
func (r *Resampler) Process(samples []float64) ([]float64, error) {
	if r.resampler == nil {
		return samples, nil
	}
	out, err := r.resampler.Process(samples)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "resample").
			Build()
	}
	return out, nil
}

// Flush returns the samples still held in the filter. Call it once after the
// last Process.
func (r *Resampler) Flush() ([]float64, error) {
	if r.resampler == nil {
		return nil, nil
	}
	out, err := r.resampler.Flush()
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "resample_flush").
			Build()
	}
	return out, nil
}
