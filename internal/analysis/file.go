package analysis

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/myaudio"
	"github.com/tphakala/go-porcupine/internal/wakeword"
	"github.com/tphakala/go-porcupine/pkg/spinner"
)

// Output formats accepted by FileAnalysis.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// FileOptions controls a file analysis run.
type FileOptions struct {
	Path   string
	Format string // FormatTable when empty
	Output io.Writer
	// Progress, if set, receives a spinner with the completed percentage
	Progress io.Writer
}

const progressInterval = 64 // frames between progress updates

// collector keeps detections in arrival order.
type collector struct {
	mu         sync.Mutex
	detections []wakeword.Detection
}

func (c *collector) Name() string { return "collector" }

func (c *collector) HandleDetection(_ context.Context, d wakeword.Detection) error {
	c.mu.Lock()
	c.detections = append(c.detections, d)
	c.mu.Unlock()
	return nil
}

// FileAnalysis runs the engine over an audio file and writes the detections.
func FileAnalysis(ctx context.Context, settings *conf.Settings, opts FileOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	switch opts.Format {
	case FormatTable, FormatCSV, FormatJSON:
	default:
		return errors.Newf("unsupported output format %q", opts.Format).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	audioInfo, err := validateAudioFile(opts.Path)
	if err != nil {
		return err
	}

	engine, err := openEngine(settings)
	if err != nil {
		return err
	}
	defer engine.Delete()

	found := &collector{}
	proc, err := wakeword.NewProcessor(engine, keywordLabels(settings.Porcupine.Keywords),
		wakeword.WithSource(filepath.Base(opts.Path)),
		wakeword.WithRefractoryPeriod(settings.Detection.RefractoryPeriod),
		wakeword.WithHandlers(found, wakeword.LogHandler{}),
	)
	if err != nil {
		return err
	}

	progress := newProgress(opts.Progress, filepath.Base(opts.Path),
		expectedFrames(audioInfo, engine.SampleRate(), engine.FrameLength()))

	start := time.Now()
	var firstErr error
	frames, err := myaudio.ReadFile(ctx, opts.Path, engine.SampleRate(), engine.FrameLength(), func(frame []int16) error {
		if _, err := proc.ProcessFrame(ctx, frame); err != nil {
			if wakeword.IsFatal(err) {
				return err
			}
			GetLogger().Warn("frame processing failed",
				logger.String("file", opts.Path),
				logger.Int64("frame", proc.Stats().Frames-1),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		progress.frame()
		return nil
	})
	progress.done()
	if err != nil {
		return err
	}

	stats := proc.Stats()
	GetLogger().Info("file analysis complete",
		logger.String("file", opts.Path),
		logger.Int("frames", frames),
		logger.Int64("detections", stats.Detections),
		logger.Int64("errors", stats.Errors),
		logger.Duration("elapsed", time.Since(start)))

	if err := WriteDetections(opts.Output, opts.Format, found.detections); err != nil {
		return err
	}
	if stats.Errors > 0 {
		return errors.New(fmt.Errorf("%d of %d frames failed: %w", stats.Errors, stats.Frames, firstErr)).
			Component("analysis").
			Category(errors.CategoryEngineProcess).
			Context("operation", "file_analysis").
			Build()
	}
	return nil
}

// validateAudioFile checks that path is a readable, non-empty audio file.
func validateAudioFile(path string) (myaudio.AudioInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return myaudio.AudioInfo{}, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("file", path).
			Build()
	}
	if info.IsDir() {
		return myaudio.AudioInfo{}, errors.Newf("%s is a directory, not a file", filepath.Base(path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() == 0 {
		return myaudio.AudioInfo{}, errors.Newf("file %s is empty", filepath.Base(path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	audioInfo, err := myaudio.GetAudioInfo(path)
	if err != nil {
		return myaudio.AudioInfo{}, err
	}
	if audioInfo.TotalSamples == 0 {
		return myaudio.AudioInfo{}, errors.Newf("file %s contains no samples", filepath.Base(path)).
			Component("analysis").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return audioInfo, nil
}

// expectedFrames estimates the engine frames a file produces after resampling.
func expectedFrames(info myaudio.AudioInfo, sampleRate, frameLength int) int {
	if info.SampleRate <= 0 || frameLength <= 0 {
		return 0
	}
	samples := int64(info.TotalSamples) * int64(sampleRate) / int64(info.SampleRate)
	return int((samples + int64(frameLength) - 1) / int64(frameLength))
}

// progress reports file analysis progress on a spinner. A nil writer
// disables it.
type progress struct {
	spin  *spinner.Spinner
	name  string
	total int
	count int
}

func newProgress(w io.Writer, name string, total int) *progress {
	p := &progress{name: name, total: total}
	if w != nil {
		p.spin = spinner.New(w)
	}
	return p
}

func (p *progress) frame() {
	p.count++
	if p.spin == nil || p.count%progressInterval != 0 {
		return
	}
	p.spin.Update(p.status())
}

func (p *progress) status() string {
	if p.total <= 0 {
		return fmt.Sprintf(" %s: %d frames", p.name, p.count)
	}
	// header bytes make the estimate slightly high for WAV
	pct := min(p.count*100/p.total, 99)
	return fmt.Sprintf(" %s: %d%%", p.name, pct)
}

func (p *progress) done() {
	if p.spin != nil {
		p.spin.Cleanup()
	}
}

// WriteDetections renders detections in one of the output formats.
func WriteDetections(w io.Writer, format string, detections []wakeword.Detection) error {
	var err error
	switch format {
	case FormatJSON:
		if detections == nil {
			detections = []wakeword.Detection{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(detections)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"offset_seconds", "keyword", "index", "frame_offset"})
		for _, d := range detections {
			_ = cw.Write([]string{
				strconv.FormatFloat(d.Offset, 'f', 3, 64),
				d.Keyword,
				strconv.Itoa(d.Index),
				strconv.FormatInt(d.FrameOffset, 10),
			})
		}
		cw.Flush()
		err = cw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKEYWORD\tINDEX")
		for _, d := range detections {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", formatOffset(d.Offset), d.Keyword, d.Index)
		}
		err = tw.Flush()
	}
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("operation", "write_results").
			Build()
	}
	return nil
}

// formatOffset renders seconds as mm:ss.mmm, or h:mm:ss.mmm past an hour.
func formatOffset(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	ms := int(d/time.Millisecond) % 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, ms)
}
