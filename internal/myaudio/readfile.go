package myaudio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

// AudioInfo describes an audio file before decoding.
type AudioInfo struct {
	Format       string
	SampleRate   int
	TotalSamples int // per channel
	NumChannels  int
	BitDepth     int
}

// FrameCallback receives each frame read from a file. Returning an error
// stops reading and ReadFile returns that error.
type FrameCallback func(frame []int16) error

// pcmDecoder yields interleaved integer samples until io.EOF.
type pcmDecoder interface {
	info() AudioInfo
	next() ([]int, error)
}

// supportedExtensions lists the file types ReadFile accepts.
var supportedExtensions = map[string]string{
	".wav":  "wav",
	".wave": "wav",
	".flac": "flac",
}

// IsSupportedFile reports whether ReadFile can decode path.
func IsSupportedFile(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// GetAudioInfo reads the header of a WAV or FLAC file.
func GetAudioInfo(path string) (AudioInfo, error) {
	file, dec, err := openDecoder(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer file.Close() //nolint:errcheck // read-only file
	return dec.info(), nil
}

// ReadFile decodes a WAV or FLAC file into mono frames of frameLength
// samples at sampleRate. The last frame is zero-padded. It returns the
// number of frames delivered to fn.
func ReadFile(ctx context.Context, path string, sampleRate, frameLength int, fn FrameCallback) (int, error) {
	if frameLength <= 0 || sampleRate <= 0 {
		return 0, errors.Newf("invalid frame format: %d samples at %d Hz", frameLength, sampleRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	file, dec, err := openDecoder(path)
	if err != nil {
		return 0, err
	}
	defer file.Close() //nolint:errcheck // read-only file

	info := dec.info()
	divisor, err := getAudioDivisor(info.BitDepth)
	if err != nil {
		return 0, err
	}
	resampler, err := NewResampler(info.SampleRate, sampleRate)
	if err != nil {
		return 0, err
	}

	GetLogger().Debug("reading audio file",
		logger.String("path", path),
		logger.String("format", info.Format),
		logger.Int("sample_rate", info.SampleRate),
		logger.Int("channels", info.NumChannels),
		logger.Int("bit_depth", info.BitDepth))

	pending := make([]int16, 0, frameLength*2)
	frames := 0
	emit := func(final bool) error {
		for len(pending) >= frameLength || (final && len(pending) > 0) {
			frame := make([]int16, frameLength)
			n := copy(frame, pending)
			pending = pending[n:]
			if err := fn(frame); err != nil {
				return err
			}
			frames++
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return frames, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryCancellation).
				Context("path", path).
				Build()
		}

		chunk, readErr := dec.next()
		if len(chunk) > 0 {
			resampled, err := resampler.Process(downmix(chunk, info.NumChannels, divisor))
			if err != nil {
				return frames, err
			}
			pending = append(pending, floatToPCM16(resampled)...)
			if err := emit(false); err != nil {
				return frames, err
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return frames, errors.New(readErr).
				Component("myaudio").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Context("format", info.Format).
				Build()
		}
	}

	tail, err := resampler.Flush()
	if err != nil {
		return frames, err
	}
	pending = append(pending, floatToPCM16(tail)...)
	if err := emit(true); err != nil {
		return frames, err
	}
	return frames, nil
}

func openDecoder(path string) (*os.File, pcmDecoder, error) {
	format, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, nil, errors.Newf("unsupported audio file type: %s", filepath.Ext(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var dec pcmDecoder
	switch format {
	case "flac":
		dec, err = newFLACDecoder(file)
	default:
		dec, err = newWAVDecoder(file)
	}
	if err != nil {
		_ = file.Close()
		return nil, nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Context("format", format).
			Build()
	}
	return file, dec, nil
}
