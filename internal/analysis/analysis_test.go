package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/datastore"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/myaudio"
	"github.com/tphakala/go-porcupine/internal/wakeword"
	"github.com/tphakala/go-porcupine/pkg/porcupine"
)

const (
	testFrameLength = 512
	testSampleRate  = 16000
)

// fakeEngine reports a keyword index on the configured frame numbers and
// fails the frames listed in errs, or every frame when fail is set.
type fakeEngine struct {
	mu      sync.Mutex
	hits    map[int]int
	errs    map[int]error
	fail    error
	frames  int
	deleted bool
}

func (e *fakeEngine) Process(pcm []int16) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(pcm) != testFrameLength {
		return -1, errors.NewStd("wrong frame length")
	}
	n := e.frames
	e.frames++
	if e.fail != nil {
		return -1, e.fail
	}
	if err, ok := e.errs[n]; ok {
		return -1, err
	}
	if idx, ok := e.hits[n]; ok {
		return idx, nil
	}
	return -1, nil
}

func (e *fakeEngine) FrameLength() int { return testFrameLength }
func (e *fakeEngine) SampleRate() int  { return testSampleRate }
func (e *fakeEngine) Version() string  { return "3.0.0" }

func (e *fakeEngine) Delete() {
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
}

func useFakeEngine(t *testing.T, engine *fakeEngine) {
	t.Helper()
	orig := newEngine
	newEngine = func(*conf.Settings) (Engine, error) { return engine, nil }
	t.Cleanup(func() { newEngine = orig })
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Porcupine: conf.PorcupineSettings{Keywords: []string{"porcupine", "Hey Google"}},
		Audio:     conf.AudioSettings{Source: "test"},
		Detection: conf.DetectionSettings{RecentLimit: 10},
	}
}

func writeWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	out, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, samples)
	for i := range data {
		data[i] = (i % 200) - 100
	}
	enc := wav.NewEncoder(out, testSampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: testSampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, out.Close())
	return path
}

func TestFileAnalysisStopsOnActivationError(t *testing.T) {
	engine := &fakeEngine{fail: porcupine.ErrActivationRefused}
	useFakeEngine(t, engine)
	path := writeWAV(t, testSampleRate)

	var out bytes.Buffer
	err := FileAnalysis(context.Background(), testSettings(), FileOptions{Path: path, Output: &out, Format: FormatJSON})
	require.ErrorIs(t, err, porcupine.ErrActivationRefused)
	assert.Equal(t, 1, engine.frames)
	assert.Empty(t, out.String())
	assert.True(t, engine.deleted)
}

func TestFileAnalysisReportsFrameErrors(t *testing.T) {
	engine := &fakeEngine{
		hits: map[int]int{10: 0},
		errs: map[int]error{5: porcupine.ErrRuntime, 6: porcupine.ErrRuntime},
	}
	useFakeEngine(t, engine)
	path := writeWAV(t, testSampleRate)

	var out bytes.Buffer
	err := FileAnalysis(context.Background(), testSettings(), FileOptions{Path: path, Output: &out, Format: FormatCSV})
	require.Error(t, err)
	require.ErrorIs(t, err, porcupine.ErrRuntime)
	assert.True(t, errors.IsCategory(err, errors.CategoryEngineProcess))
	assert.Contains(t, err.Error(), "2 of 32 frames failed")

	// detections from the frames that did succeed are still written
	assert.Equal(t, 32, engine.frames)
	assert.Contains(t, out.String(), "porcupine")
}

func TestKeywordPaths(t *testing.T) {
	paths, err := KeywordPaths([]string{"porcupine", "hey_google", "/opt/kw/custom_linux.ppn", "mine.PPN"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"porcupine_" + bundle.Platform() + ".ppn",
		"hey google_" + bundle.Platform() + ".ppn",
		"/opt/kw/custom_linux.ppn",
		"mine.PPN",
	}, paths)

	_, err = KeywordPaths([]string{"not a keyword"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestKeywordLabels(t *testing.T) {
	assert.Equal(t, []string{"porcupine", "hey google", "custom"},
		keywordLabels([]string{"Porcupine", "Hey Google", "/opt/kw/custom_linux.ppn"}))
}

func TestFileAnalysisTable(t *testing.T) {
	engine := &fakeEngine{hits: map[int]int{10: 0, 20: 1}}
	useFakeEngine(t, engine)
	path := writeWAV(t, testSampleRate)

	var out bytes.Buffer
	err := FileAnalysis(context.Background(), testSettings(), FileOptions{Path: path, Output: &out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "KEYWORD")
	assert.Contains(t, lines[1], "00:00.320")
	assert.Contains(t, lines[1], "porcupine")
	assert.Contains(t, lines[2], "00:00.640")
	assert.Contains(t, lines[2], "hey google")

	// 16000 samples make 31 full frames plus one padded frame
	assert.Equal(t, 32, engine.frames)
	assert.True(t, engine.deleted)
}

func TestFileAnalysisJSONAndCSV(t *testing.T) {
	engine := &fakeEngine{hits: map[int]int{5: 1}}
	useFakeEngine(t, engine)
	path := writeWAV(t, 8*testFrameLength)

	var out bytes.Buffer
	require.NoError(t, FileAnalysis(context.Background(), testSettings(),
		FileOptions{Path: path, Format: FormatJSON, Output: &out}))

	var got []wakeword.Detection
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hey google", got[0].Keyword)
	assert.Equal(t, int64(5), got[0].FrameOffset)
	assert.Equal(t, "clip.wav", got[0].Source)

	engine.frames = 0
	out.Reset()
	require.NoError(t, FileAnalysis(context.Background(), testSettings(),
		FileOptions{Path: path, Format: FormatCSV, Output: &out}))
	assert.Equal(t, "offset_seconds,keyword,index,frame_offset\n0.160,hey google,1,5\n", out.String())
}

func TestFileAnalysisNoDetectionsJSON(t *testing.T) {
	useFakeEngine(t, &fakeEngine{})
	path := writeWAV(t, testFrameLength)

	var out bytes.Buffer
	require.NoError(t, FileAnalysis(context.Background(), testSettings(),
		FileOptions{Path: path, Format: FormatJSON, Output: &out}))
	assert.JSONEq(t, "[]", out.String())
}

func TestFileAnalysisRejectsBadInput(t *testing.T) {
	useFakeEngine(t, &fakeEngine{})
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		name string
		opts FileOptions
	}{
		{"missing file", FileOptions{Path: filepath.Join(dir, "missing.wav")}},
		{"directory", FileOptions{Path: dir}},
		{"empty file", FileOptions{Path: empty}},
		{"bad format", FileOptions{Path: writeWAV(t, testFrameLength), Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = &bytes.Buffer{}
			require.Error(t, FileAnalysis(context.Background(), testSettings(), tt.opts))
		})
	}
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "00:00.000", formatOffset(0))
	assert.Equal(t, "01:02.500", formatOffset(62.5))
	assert.Equal(t, "1:00:01.000", formatOffset(3601))
}

func TestRealtimeAnalysisStoresDetections(t *testing.T) {
	engine := &fakeEngine{hits: map[int]int{3: 0}}
	useFakeEngine(t, engine)

	origCapture := captureFunc
	t.Cleanup(func() { captureFunc = origCapture })
	captureFunc = func(ctx context.Context, cfg myaudio.CaptureConfig, frames chan<- []int16, _ chan<- myaudio.AudioLevelData) error {
		defer close(frames)
		assert.Equal(t, testFrameLength, cfg.FrameLength)
		assert.Equal(t, testSampleRate, cfg.SampleRate)
		for range 6 {
			select {
			case frames <- make([]int16, cfg.FrameLength):
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}

	settings := testSettings()
	settings.Database = conf.DatabaseSettings{Enabled: true, Path: filepath.Join(t.TempDir(), "detections.db")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, RealtimeAnalysis(ctx, settings))
	assert.True(t, engine.deleted)
	assert.Equal(t, 6, engine.frames)

	store, err := datastore.Open(settings.Database.Path)
	require.NoError(t, err)
	defer store.Close()

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "porcupine", recent[0].Keyword)
	assert.Equal(t, int64(3), recent[0].FrameOffset)
	assert.Equal(t, "test", recent[0].Source)
}

func TestRealtimeAnalysisCaptureError(t *testing.T) {
	useFakeEngine(t, &fakeEngine{})

	origCapture := captureFunc
	t.Cleanup(func() { captureFunc = origCapture })
	captureFunc = func(context.Context, myaudio.CaptureConfig, chan<- []int16, chan<- myaudio.AudioLevelData) error {
		return errors.NewStd("no capture device")
	}

	err := RealtimeAnalysis(context.Background(), testSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capture device")
}

func TestRealtimeAnalysisStopsOnActivationError(t *testing.T) {
	engine := &fakeEngine{fail: porcupine.ErrActivationLimit}
	useFakeEngine(t, engine)

	origCapture := captureFunc
	t.Cleanup(func() { captureFunc = origCapture })
	captureFunc = func(ctx context.Context, cfg myaudio.CaptureConfig, frames chan<- []int16, _ chan<- myaudio.AudioLevelData) error {
		defer close(frames)
		for {
			select {
			case frames <- make([]int16, cfg.FrameLength):
			case <-ctx.Done():
				return nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := RealtimeAnalysis(ctx, testSettings())
	require.ErrorIs(t, err, porcupine.ErrActivationLimit)
	assert.Equal(t, 1, engine.frames)
	assert.True(t, engine.deleted)
}

func TestFileAnalysisProgress(t *testing.T) {
	useFakeEngine(t, &fakeEngine{})
	path := writeWAV(t, 2*progressInterval*testFrameLength)

	var out, progress bytes.Buffer
	require.NoError(t, FileAnalysis(context.Background(), testSettings(),
		FileOptions{Path: path, Output: &out, Progress: &progress}))

	assert.Contains(t, progress.String(), "clip.wav: ")
	assert.Contains(t, progress.String(), "%")
	assert.True(t, strings.HasSuffix(progress.String(), "\033[?25h"), "cursor restored")
}

func TestExpectedFrames(t *testing.T) {
	assert.Equal(t, 32, expectedFrames(myaudio.AudioInfo{SampleRate: 16000, TotalSamples: 16000}, 16000, 512))
	assert.Equal(t, 32, expectedFrames(myaudio.AudioInfo{SampleRate: 48000, TotalSamples: 48000}, 16000, 512))
	assert.Equal(t, 0, expectedFrames(myaudio.AudioInfo{}, 16000, 512))
}
