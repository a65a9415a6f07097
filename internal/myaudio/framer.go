package myaudio

import (
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/go-porcupine/internal/errors"
)

const bytesPerSample = 2

// Framer assembles little-endian signed 16-bit PCM into frames of a fixed
// sample count. Writes and reads may happen on different goroutines.
type Framer struct {
	frameLength int
	rb          *ringbuffer.RingBuffer
	mu          sync.Mutex // guards readBuf, dropped and multi-step buffer access
	readBuf     []byte
	dropped     uint64
}

// NewFramer returns a Framer for frames of frameLength samples that holds
// up to capacityFrames unread frames.
func NewFramer(frameLength, capacityFrames int) (*Framer, error) {
	if frameLength <= 0 {
		return nil, errors.Newf("invalid frame length %d", frameLength).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if capacityFrames < 1 {
		capacityFrames = 1
	}
	frameBytes := frameLength * bytesPerSample
	return &Framer{
		frameLength: frameLength,
		rb:          ringbuffer.New(frameBytes * capacityFrames),
		readBuf:     make([]byte, frameBytes),
	}, nil
}

// FrameLength returns the number of samples per frame.
func (f *Framer) FrameLength() int { return f.frameLength }

// Write appends raw PCM bytes. When the buffer cannot take all of p the
// oldest whole frames are discarded to make room, so a capture callback
// never stalls on a slow consumer.
func (f *Framer) Write(p []byte) error {
	p = p[:len(p)-len(p)%bytesPerSample]
	if len(p) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if capacity := f.rb.Capacity(); len(p) > capacity {
		f.dropped += uint64((len(p) - capacity) / bytesPerSample)
		p = p[len(p)-capacity:]
	}
	if free := f.rb.Free(); free < len(p) {
		f.discardLocked(len(p) - free)
	}

	if _, err := f.rb.Write(p); err != nil {
		return errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "framer_write").
			Context("bytes", len(p)).
			Build()
	}
	return nil
}

// WriteSamples appends samples.
func (f *Framer) WriteSamples(samples []int16) error {
	return f.Write(samplesToBytes(samples))
}

// Next returns the next complete frame, or false when fewer than
// FrameLength samples are buffered.
func (f *Framer) Next() ([]int16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rb.Length() < len(f.readBuf) {
		return nil, false
	}
	if _, err := f.rb.Read(f.readBuf); err != nil {
		return nil, false
	}
	return bytesToSamples(f.readBuf), true
}

// Buffered returns the number of samples waiting to be framed.
func (f *Framer) Buffered() int {
	return f.rb.Length() / bytesPerSample
}

// Dropped returns the number of samples discarded because the buffer was full.
func (f *Framer) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Reset discards buffered audio.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rb.Reset()
}

// discardLocked drops at least n bytes, rounded up to whole frames.
func (f *Framer) discardLocked(n int) {
	frameBytes := len(f.readBuf)
	n = ((n + frameBytes - 1) / frameBytes) * frameBytes
	n = min(n, f.rb.Length())
	if n == 0 {
		return
	}
	read, _ := f.rb.Read(make([]byte, n))
	f.dropped += uint64(read / bytesPerSample)
}

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], uint16(s))
	}
	return buf
}

func bytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*bytesPerSample:]))
	}
	return samples
}
