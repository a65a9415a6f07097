package myaudio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/tphakala/flac"
)

type flacDecoder struct {
	decoder *flac.Decoder
	meta    AudioInfo
}

func newFLACDecoder(file *os.File) (*flacDecoder, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return nil, err
	}
	switch decoder.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", decoder.BitsPerSample)
	}

	return &flacDecoder{
		decoder: decoder,
		meta: AudioInfo{
			Format:       "flac",
			SampleRate:   decoder.SampleRate,
			TotalSamples: int(decoder.TotalSamples),
			NumChannels:  decoder.NChannels,
			BitDepth:     decoder.BitsPerSample,
		},
	}, nil
}

func (d *flacDecoder) info() AudioInfo { return d.meta }

// next converts one decoded FLAC frame of interleaved little-endian bytes.
func (d *flacDecoder) next() ([]int, error) {
	frame, err := d.decoder.Next()
	if err != nil {
		return nil, err // io.EOF at end of stream
	}

	width := d.meta.BitDepth / 8
	samples := make([]int, 0, len(frame)/width)
	for i := 0; i+width <= len(frame); i += width {
		var sample int32
		switch d.meta.BitDepth {
		case 16:
			sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		case 24:
			sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
		case 32:
			sample = int32(binary.LittleEndian.Uint32(frame[i:]))
		}
		samples = append(samples, int(sample))
	}
	return samples, nil
}
