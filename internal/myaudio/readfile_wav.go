package myaudio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/go-porcupine/internal/errors"
)

// wavChunkFrames is the number of sample frames decoded per read.
const wavChunkFrames = 4096

type wavDecoder struct {
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	meta    AudioInfo
}

func newWAVDecoder(file *os.File) (*wavDecoder, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.NewStd("input is not a valid WAV audio file")
	}

	if decoder.BitDepth != 8 && decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}
	if decoder.NumChans < 1 {
		return nil, fmt.Errorf("unsupported number of channels: %d", decoder.NumChans)
	}

	meta := AudioInfo{
		Format:      "wav",
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}
	if fi, err := file.Stat(); err == nil {
		meta.TotalSamples = int(fi.Size()) / (meta.BitDepth / 8) / meta.NumChannels
	}

	channels := int(decoder.NumChans)
	return &wavDecoder{
		decoder: decoder,
		buf: &audio.IntBuffer{
			Data:   make([]int, wavChunkFrames*channels),
			Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
		},
		meta: meta,
	}, nil
}

func (d *wavDecoder) info() AudioInfo { return d.meta }

func (d *wavDecoder) next() ([]int, error) {
	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	// 8-bit WAV is unsigned
	if d.meta.BitDepth == 8 {
		for i := range n {
			d.buf.Data[i] -= 128
		}
	}
	return d.buf.Data[:n], nil
}
