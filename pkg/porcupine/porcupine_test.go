package porcupine

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/pvnative"
)

const testAccessKey = "test-access-key"

// resourceDir lays out a model and keyword files the way a release bundle does
func resourceDir(t *testing.T, keywords ...BuiltInKeyword) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib", "common"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "common", bundle.ModelFileName), []byte("params"), 0o600))
	kwDir := filepath.Join(dir, "keywords")
	require.NoError(t, os.MkdirAll(kwDir, 0o750))
	for _, k := range keywords {
		require.NoError(t, os.WriteFile(filepath.Join(kwDir, k.FileName(bundle.Platform())), []byte("ppn"), 0o600))
	}
	return dir
}

func keywordFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "kw"+string(rune('a'+i))+".ppn")
		require.NoError(t, os.WriteFile(paths[i], []byte("ppn"), 0o600))
	}
	return paths
}

// withFake wires a fake library and an isolated resource bundle
func withFake(lib *fakeLibrary, dir string) Option {
	return func(c *Config) {
		c.library = lib
		c.bundle = bundle.New(bundle.WithoutSystemDirs(), bundle.WithDirs(dir))
	}
}

func newTestConfig(t *testing.T, lib *fakeLibrary, keywordPaths []string) Config {
	t.Helper()
	cfg := Config{AccessKey: testAccessKey, KeywordPaths: keywordPaths}
	withFake(lib, resourceDir(t))(&cfg)
	return cfg
}

func requireEngineError(t *testing.T, err error, sentinel *Error) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	return pErr
}

func TestNewBuiltInSilentFrame(t *testing.T) {
	lib := newFakeLibrary()
	dir := resourceDir(t, KeywordPorcupine)

	p, err := NewFromBuiltIn(testAccessKey, KeywordPorcupine, withFake(lib, dir))
	require.NoError(t, err)
	defer p.Delete()

	assert.Equal(t, DefaultSDK, lib.sdk)
	assert.Equal(t, []float32{DefaultSensitivity}, lib.sensitivities)
	assert.Equal(t, filepath.Join(dir, "lib", "common", bundle.ModelFileName), lib.modelPath)
	assert.Equal(t, []string{filepath.Join(dir, "keywords", KeywordPorcupine.FileName(bundle.Platform()))}, p.Keywords())

	index, err := p.Process(make([]int16, p.FrameLength()))
	require.NoError(t, err)
	assert.Equal(t, NoDetection, index)
}

func TestProcessReturnsKeywordIndex(t *testing.T) {
	lib := newFakeLibrary()
	lib.processIndex = 1

	p, err := NewFromBuiltIns(testAccessKey, []BuiltInKeyword{KeywordJarvis, KeywordHeyGoogle},
		withFake(lib, resourceDir(t, KeywordJarvis, KeywordHeyGoogle)),
		WithSensitivities(0.2, 0.8))
	require.NoError(t, err)
	defer p.Delete()

	assert.Equal(t, []float32{0.2, 0.8}, lib.sensitivities)

	frame := make([]int16, p.FrameLength())
	frame[10] = 1200
	index, err := p.Process(frame)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Contains(t, p.Keywords()[index], "hey google_")
}

func TestValidationOrder(t *testing.T) {
	lib := newFakeLibrary()
	paths := keywordFiles(t, 2)

	// empty access key wins over every other problem
	cfg := newTestConfig(t, lib, paths)
	cfg.AccessKey = ""
	cfg.Sensitivities = []float32{2}
	cfg.ModelPath = "/does/not/exist.pv"
	pErr := requireEngineError(t, mustFail(New(cfg)), ErrInvalidArgument)
	assert.Equal(t, "AccessKey is required for Porcupine initialization", pErr.Message)

	// count mismatch is checked before range
	cfg = newTestConfig(t, lib, paths)
	cfg.Sensitivities = []float32{2}
	pErr = requireEngineError(t, mustFail(New(cfg)), ErrInvalidArgument)
	assert.Equal(t, "Number of sensitivity values (1) does not match number of keywords (2)", pErr.Message)

	// range is checked before resources
	cfg = newTestConfig(t, lib, paths)
	cfg.Sensitivities = []float32{0.5, 1.5}
	cfg.ModelPath = "/does/not/exist.pv"
	pErr = requireEngineError(t, mustFail(New(cfg)), ErrInvalidArgument)
	assert.Contains(t, pErr.Message, "between [0,1]")

	assert.Zero(t, lib.initCalls)
}

func mustFail(p *Porcupine, err error) error {
	if p != nil {
		p.Delete()
	}
	return err
}

func TestSensitivityCountMismatch(t *testing.T) {
	lib := newFakeLibrary()
	for keywords := 1; keywords <= 4; keywords++ {
		paths := keywordFiles(t, keywords)
		for sens := 0; sens <= 5; sens++ {
			if sens == keywords {
				continue
			}
			cfg := newTestConfig(t, lib, paths)
			// non-nil even when empty, so no defaults are applied
			cfg.Sensitivities = make([]float32, sens)
			requireEngineError(t, mustFail(New(cfg)), ErrInvalidArgument)
		}
	}
	assert.Zero(t, lib.initCalls)
}

func TestSensitivityRange(t *testing.T) {
	lib := newFakeLibrary()
	paths := keywordFiles(t, 1)

	for _, s := range []float32{-0.01, 1.01, float32(math.NaN()), float32(math.Inf(1))} {
		cfg := newTestConfig(t, lib, paths)
		cfg.Sensitivities = []float32{s}
		requireEngineError(t, mustFail(New(cfg)), ErrInvalidArgument)
	}

	for _, s := range []float32{0, 0.5, 1} {
		cfg := newTestConfig(t, lib, paths)
		cfg.Sensitivities = []float32{s}
		p, err := New(cfg)
		require.NoError(t, err, "sensitivity %v", s)
		p.Delete()
	}
}

func TestMissingResources(t *testing.T) {
	lib := newFakeLibrary()

	cfg := newTestConfig(t, lib, []string{"/nowhere/custom.ppn"})
	pErr := requireEngineError(t, mustFail(New(cfg)), ErrIO)
	assert.Contains(t, pErr.Message, "/nowhere/custom.ppn")

	cfg = newTestConfig(t, lib, keywordFiles(t, 1))
	cfg.ModelPath = "/nowhere/other_params.pv"
	requireEngineError(t, mustFail(New(cfg)), ErrIO)

	// default model missing from an empty bundle
	cfg = Config{AccessKey: testAccessKey, KeywordPaths: keywordFiles(t, 1)}
	withFake(lib, t.TempDir())(&cfg)
	pErr = requireEngineError(t, mustFail(New(cfg)), ErrIO)
	assert.Equal(t, "Unable to find the default model path", pErr.Message)

	_, err := NewFromBuiltIn(testAccessKey, KeywordTerminator, withFake(lib, resourceDir(t)))
	pErr = requireEngineError(t, err, ErrIO)
	assert.Equal(t, "Unable to open the default keyword file for keyword 'Terminator'", pErr.Message)

	_, err = NewFromBuiltIn(testAccessKey, BuiltInKeyword("Hello"), withFake(lib, resourceDir(t)))
	requireEngineError(t, err, ErrInvalidArgument)

	assert.Zero(t, lib.initCalls)
}

func TestKeywordPathFallsBackToBundle(t *testing.T) {
	lib := newFakeLibrary()
	dir := resourceDir(t, KeywordBumblebee)
	name := KeywordBumblebee.FileName(bundle.Platform())
	want := filepath.Join(dir, "keywords", name)

	// bare file name
	p, err := NewFromKeywordPath(testAccessKey, name, withFake(lib, dir))
	require.NoError(t, err)
	p.Delete()
	assert.Equal(t, []string{want}, lib.keywordPaths)

	// path relative to a resource directory
	p, err = NewFromKeywordPath(testAccessKey, filepath.Join("keywords", name), withFake(lib, dir))
	require.NoError(t, err)
	p.Delete()
	assert.Equal(t, []string{want}, lib.keywordPaths)

	// a missing absolute path is never swapped for the packaged file
	missing := filepath.Join(t.TempDir(), "somewhere", name)
	_, err = NewFromKeywordPath(testAccessKey, missing, withFake(lib, dir))
	pErr := requireEngineError(t, err, ErrIO)
	assert.Contains(t, pErr.Message, missing)
}

func TestMissingExplicitModelPath(t *testing.T) {
	lib := newFakeLibrary()
	cfg := newTestConfig(t, lib, keywordFiles(t, 1))

	// same base name as the packaged default model
	missing := filepath.Join(t.TempDir(), "custom-models", bundle.ModelFileName)
	cfg.ModelPath = missing
	pErr := requireEngineError(t, mustFail(New(cfg)), ErrIO)
	assert.Equal(t, "Could not find file at path '"+missing+"'", pErr.Message)
	assert.Zero(t, lib.initCalls)
}

func TestEmbeddedResources(t *testing.T) {
	lib := newFakeLibrary()
	name := KeywordComputer.FileName(bundle.Platform())
	fsys := fstest.MapFS{
		"lib/common/" + bundle.ModelFileName: &fstest.MapFile{Data: []byte("params")},
		"keywords/" + name:                   &fstest.MapFile{Data: []byte("ppn")},
	}
	cacheDir := t.TempDir()

	cfg := Config{AccessKey: testAccessKey}
	WithResources(fsys, cacheDir)(&cfg)
	cfg.library = lib
	cfg.bundle = bundle.New(bundle.WithoutSystemDirs(), bundle.WithFS(fsys, cacheDir))

	paths, err := builtInPaths(cfg.resources(), []BuiltInKeyword{KeywordComputer})
	require.NoError(t, err)
	cfg.KeywordPaths = paths

	p, err := New(cfg)
	require.NoError(t, err)
	defer p.Delete()

	assert.Equal(t, filepath.Join(cacheDir, "keywords", name), lib.keywordPaths[0])
	assert.Equal(t, filepath.Join(cacheDir, "lib", "common", bundle.ModelFileName), lib.modelPath)
}

func TestProcessWrongFrameLength(t *testing.T) {
	lib := newFakeLibrary()
	p, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.NoError(t, err)
	defer p.Delete()

	for _, n := range []int{0, 1, p.FrameLength() - 1, p.FrameLength() + 1, 4 * p.FrameLength()} {
		index, err := p.Process(make([]int16, n))
		pErr := requireEngineError(t, err, ErrInvalidArgument)
		assert.Equal(t, NoDetection, index)
		assert.Contains(t, pErr.Message, "must contain 512 samples")
	}

	_, err = p.Process(nil)
	requireEngineError(t, err, ErrInvalidArgument)
	assert.Zero(t, lib.processCalls)
}

func TestProcessAfterDelete(t *testing.T) {
	lib := newFakeLibrary()
	p, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.NoError(t, err)

	p.Delete()
	assert.True(t, p.Released())

	_, err = p.Process(make([]int16, p.FrameLength()))
	pErr := requireEngineError(t, err, ErrInvalidState)
	assert.Equal(t, "Porcupine must be initialized before processing", pErr.Message)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestDeleteIsIdempotent(t *testing.T) {
	lib := newFakeLibrary()
	p, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.NoError(t, err)

	for range 5 {
		p.Delete()
	}
	assert.Equal(t, 1, lib.totalDeletes())
}

func TestInitFailureCarriesMessageStack(t *testing.T) {
	lib := newFakeLibrary()
	lib.initStatus = pvnative.StatusActivationRefused
	lib.stack = []string{"access key rejected", "activation failed"}

	_, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	pErr := requireEngineError(t, err, ErrActivationRefused)
	assert.Equal(t, "Porcupine init failed", pErr.Message)
	assert.Equal(t, []string{"access key rejected", "activation failed"}, pErr.MessageStack)
	assert.Equal(t, "Porcupine init failed:\n  [0] access key rejected\n  [1] activation failed", pErr.Error())
	assert.True(t, errors.IsCategory(err, errors.CategoryActivation))
}

func TestStatusMapping(t *testing.T) {
	cases := map[pvnative.Status]*Error{
		pvnative.StatusOutOfMemory:            ErrOutOfMemory,
		pvnative.StatusIOError:                ErrIO,
		pvnative.StatusInvalidArgument:        ErrInvalidArgument,
		pvnative.StatusStopIteration:          ErrStopIteration,
		pvnative.StatusKeyError:               ErrKey,
		pvnative.StatusInvalidState:           ErrInvalidState,
		pvnative.StatusRuntimeError:           ErrRuntime,
		pvnative.StatusActivationError:        ErrActivation,
		pvnative.StatusActivationLimitReached: ErrActivationLimit,
		pvnative.StatusActivationThrottled:    ErrActivationThrottled,
		pvnative.StatusActivationRefused:      ErrActivationRefused,
	}

	for status, sentinel := range cases {
		t.Run(status.String(), func(t *testing.T) {
			lib := newFakeLibrary()
			lib.initStatus = status
			_, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
			pErr := requireEngineError(t, err, sentinel)
			assert.Equal(t, "Porcupine init failed", pErr.Message)
		})
	}
}

func TestUnknownStatusFallback(t *testing.T) {
	lib := newFakeLibrary()
	lib.initStatus = pvnative.Status(99)

	_, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.Error(t, err)

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, Status(99), pErr.Status)
	assert.Equal(t, "FAKE_99: Porcupine init failed", pErr.Message)
	assert.NotErrorIs(t, err, ErrRuntime)
	assert.True(t, errors.IsCategory(err, errors.CategoryGeneric))
}

func TestErrorStackUnavailable(t *testing.T) {
	lib := newFakeLibrary()
	lib.initStatus = pvnative.StatusRuntimeError
	lib.stackStatus = pvnative.StatusOutOfMemory

	_, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	pErr := requireEngineError(t, err, ErrOutOfMemory)
	assert.Equal(t, "Unable to get Porcupine error state", pErr.Message)
	assert.Empty(t, pErr.MessageStack)
}

func TestProcessFailure(t *testing.T) {
	lib := newFakeLibrary()
	p, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.NoError(t, err)
	defer p.Delete()

	lib.processStatus = pvnative.StatusActivationThrottled
	lib.stack = []string{"too many requests"}

	index, err := p.Process(make([]int16, p.FrameLength()))
	pErr := requireEngineError(t, err, ErrActivationThrottled)
	assert.Equal(t, NoDetection, index)
	assert.Equal(t, "Porcupine process failed", pErr.Message)
	assert.Equal(t, []string{"too many requests"}, pErr.MessageStack)
}

func TestSetSDK(t *testing.T) {
	lib := newFakeLibrary()
	SetSDK("go-test")
	t.Cleanup(func() { SetSDK("") })

	p, err := New(newTestConfig(t, lib, keywordFiles(t, 1)))
	require.NoError(t, err)
	defer p.Delete()

	assert.Equal(t, "go-test", lib.sdk)
}

func TestInfo(t *testing.T) {
	lib := newFakeLibrary()
	info, err := Info("", func(c *Config) { c.library = lib })
	require.NoError(t, err)
	assert.Equal(t, EngineInfo{
		Version:     "3.0.0",
		FrameLength: 512,
		SampleRate:  16000,
		LibraryPath: "/fake/libpv_porcupine.so",
	}, info)
}

func TestInfoMissingLibrary(t *testing.T) {
	_, err := Info(filepath.Join(t.TempDir(), "libpv_porcupine.so"),
		func(c *Config) { c.bundle = bundle.New(bundle.WithoutSystemDirs()) })
	requireEngineError(t, err, ErrIO)
}

func TestNoKeywords(t *testing.T) {
	lib := newFakeLibrary()
	_, err := New(newTestConfig(t, lib, nil))
	requireEngineError(t, err, ErrInvalidArgument)
}
