package wakeword

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/pkg/porcupine"
)

// Engine is the part of a wake word engine the processor needs.
// *porcupine.Porcupine satisfies it.
type Engine interface {
	Process(pcm []int16) (int, error)
	FrameLength() int
	SampleRate() int
}

// FrameRecorder receives per-frame statistics.
type FrameRecorder interface {
	RecordFrame(d time.Duration, err error)
	RecordDetection(keyword string)
}

// Stats summarises a processor's work so far.
type Stats struct {
	Frames     int64 `json:"frames"`
	Detections int64 `json:"detections"`
	Errors     int64 `json:"errors"`
}

// Processor feeds frames to an Engine and dispatches detections.
type Processor struct {
	engine   Engine
	keywords []string
	source   string
	handlers []Handler
	recorder FrameRecorder
	now      func() time.Time
	newID    func() string

	refractory time.Duration
	mu         sync.Mutex // guards lastFrame and serialises ProcessFrame
	lastFrame  map[int]int64
	frames     int64

	detections atomic.Int64
	errCount   atomic.Int64
}

// Option configures a Processor.
type Option func(*Processor)

// WithHandlers adds detection handlers.
func WithHandlers(handlers ...Handler) Option {
	return func(p *Processor) { p.handlers = append(p.handlers, handlers...) }
}

// WithSource labels detections with the audio source.
func WithSource(source string) Option {
	return func(p *Processor) { p.source = source }
}

// WithRefractoryPeriod suppresses repeat detections of one keyword within d
// of audio. Zero disables suppression.
func WithRefractoryPeriod(d time.Duration) Option {
	return func(p *Processor) { p.refractory = d }
}

// WithRecorder records frame statistics, typically to Prometheus.
func WithRecorder(r FrameRecorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// WithClock overrides the wall clock used to timestamp detections.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor. keywords must list display names in
// the order the engine was created with.
func NewProcessor(engine Engine, keywords []string, opts ...Option) (*Processor, error) {
	if engine == nil {
		return nil, errors.Newf("engine is required").
			Component("wakeword").
			Category(errors.CategoryValidation).
			Build()
	}
	if engine.FrameLength() <= 0 || engine.SampleRate() <= 0 {
		return nil, errors.Newf("engine reports invalid frame format %d/%d", engine.FrameLength(), engine.SampleRate()).
			Component("wakeword").
			Category(errors.CategoryValidation).
			Build()
	}

	p := &Processor{
		engine:    engine,
		keywords:  slices.Clone(keywords),
		now:       time.Now,
		newID:     uuid.NewString,
		lastFrame: make(map[int]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// refractoryFrames converts the refractory period to whole frames.
func (p *Processor) refractoryFrames() int64 {
	if p.refractory <= 0 {
		return 0
	}
	samples := p.refractory.Seconds() * float64(p.engine.SampleRate())
	return int64(samples) / int64(p.engine.FrameLength())
}

// fatalErrors leave the engine unable to process any further frame.
var fatalErrors = []error{
	porcupine.ErrInvalidState,
	porcupine.ErrActivation,
	porcupine.ErrActivationLimit,
	porcupine.ErrActivationThrottled,
	porcupine.ErrActivationRefused,
}

// IsFatal reports whether err means later frames would fail the same way.
func IsFatal(err error) bool {
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Run processes frames until ctx is cancelled or frames is closed, both of
// which return nil. Frame errors are logged and counted. A fatal error
// (see IsFatal) stops the loop and is returned.
func (p *Processor) Run(ctx context.Context, frames <-chan []int16) error {
	ctx = logger.WithTraceID(ctx, p.newID())
	log := GetLogger().WithContext(ctx).With(logger.String("source", p.source))
	log.Info("wake word processor started",
		logger.Int("frame_length", p.engine.FrameLength()),
		logger.Int("sample_rate", p.engine.SampleRate()),
		logger.Int("keywords", len(p.keywords)))

	for {
		select {
		case <-ctx.Done():
			log.Info("wake word processor stopped", logger.Int64("frames", p.Stats().Frames))
			return nil
		case frame, ok := <-frames:
			if !ok {
				log.Info("frame source closed", logger.Int64("frames", p.Stats().Frames))
				return nil
			}
			if _, err := p.ProcessFrame(ctx, frame); err != nil {
				if IsFatal(err) {
					log.Error("engine can no longer process audio", logger.Error(err))
					return err
				}
				log.Warn("frame processing failed", logger.Error(err))
			}
		}
	}
}

// ProcessFrame runs one frame through the engine. It returns the detection,
// or nil when no keyword matched or the match was suppressed.
func (p *Processor) ProcessFrame(ctx context.Context, frame []int16) (*Detection, error) {
	p.mu.Lock()
	offset := p.frames
	p.frames++

	start := time.Now()
	index, err := p.engine.Process(frame)
	if p.recorder != nil {
		p.recorder.RecordFrame(time.Since(start), err)
	}
	if err != nil {
		p.mu.Unlock()
		p.errCount.Add(1)
		return nil, err
	}
	if index < 0 {
		p.mu.Unlock()
		return nil, nil
	}

	if window := p.refractoryFrames(); window > 0 {
		if last, seen := p.lastFrame[index]; seen && offset-last <= window {
			p.mu.Unlock()
			GetLogger().Debug("detection suppressed",
				logger.String("keyword", p.keywordName(index)),
				logger.Int64("frame_offset", offset))
			return nil, nil
		}
	}
	p.lastFrame[index] = offset
	p.mu.Unlock()

	d := Detection{
		ID:          p.newID(),
		Keyword:     p.keywordName(index),
		Index:       index,
		Source:      p.source,
		Time:        p.now(),
		FrameOffset: offset,
		Offset:      float64(offset*int64(p.engine.FrameLength())) / float64(p.engine.SampleRate()),
	}
	p.detections.Add(1)
	if p.recorder != nil {
		p.recorder.RecordDetection(d.Keyword)
	}

	p.dispatch(ctx, d)
	return &d, nil
}

func (p *Processor) keywordName(index int) string {
	if index < len(p.keywords) {
		return p.keywords[index]
	}
	return "keyword_" + strconv.Itoa(index)
}

// dispatch delivers d to every handler concurrently and waits for them.
// Handler errors are logged, they never stop processing.
func (p *Processor) dispatch(ctx context.Context, d Detection) {
	if len(p.handlers) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range p.handlers {
		g.Go(func() error {
			if err := h.HandleDetection(gctx, d); err != nil {
				GetLogger().WithContext(ctx).Warn("detection handler failed",
					logger.String("handler", h.Name()),
					logger.String("detection_id", d.ID),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Stats returns counters for the frames processed so far.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	return Stats{
		Frames:     frames,
		Detections: p.detections.Load(),
		Errors:     p.errCount.Load(),
	}
}
