// Package porcupine is a Go binding for the Porcupine wake word engine.
//
// The engine itself is a precompiled native library loaded at runtime. This
// package validates arguments, resolves packaged resources, owns the native
// handle and turns native status codes into *Error values.
//
//	p, err := porcupine.NewFromBuiltIn(accessKey, porcupine.KeywordJarvis)
//	if err != nil {
//	    return err
//	}
//	defer p.Delete()
//
//	frame := make([]int16, p.FrameLength())
//	for readFrame(frame) {
//	    index, err := p.Process(frame)
//	    if err != nil {
//	        return err
//	    }
//	    if index != porcupine.NoDetection {
//	        fmt.Println("detected", p.Keywords()[index])
//	    }
//	}
package porcupine

import (
	"fmt"
	"io/fs"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/pvnative"
)

// NoDetection is returned by Process when no keyword was detected in the frame
const NoDetection = -1

// DefaultSensitivity is used for every keyword when no sensitivities are given
const DefaultSensitivity float32 = 0.5

// DefaultSDK is the SDK identifier reported to the engine
const DefaultSDK = "go"

var sdkName atomic.Pointer[string]

// SetSDK changes the SDK identifier passed to the engine by later constructors
func SetSDK(name string) {
	sdkName.Store(&name)
}

func currentSDK() string {
	if name := sdkName.Load(); name != nil && *name != "" {
		return *name
	}
	return DefaultSDK
}

// Config holds everything needed to create an engine
type Config struct {
	// AccessKey authorizes the engine. Required.
	AccessKey string
	// KeywordPaths are .ppn keyword files. Bare file names and relative paths
	// that do not exist are looked up among the packaged resources.
	KeywordPaths []string
	// ModelPath is the model parameter file. Empty selects the packaged default.
	ModelPath string
	// Sensitivities has one value in [0,1] per keyword. Nil means DefaultSensitivity for all.
	Sensitivities []float32
	// LibraryPath is the native library. Empty resolves it among the packaged resources.
	LibraryPath string
	// ResourceDirs are searched before the default resource locations
	ResourceDirs []string
	// Resources optionally supplies packaged files from an embedded tree;
	// they are copied to CacheDir before use.
	Resources fs.FS
	CacheDir  string

	library pvnative.Library // set by tests
	bundle  *bundle.Bundle
}

func (c *Config) resources() *bundle.Bundle {
	if c.bundle != nil {
		return c.bundle
	}
	if len(c.ResourceDirs) == 0 && c.Resources == nil {
		c.bundle = bundle.Default()
		return c.bundle
	}
	var opts []bundle.Option
	if len(c.ResourceDirs) > 0 {
		opts = append(opts, bundle.WithDirs(c.ResourceDirs...))
	}
	if c.Resources != nil {
		opts = append(opts, bundle.WithFS(c.Resources, c.CacheDir))
	}
	c.bundle = bundle.New(opts...)
	return c.bundle
}

// Option adjusts a Config built by the convenience constructors
type Option func(*Config)

// WithModelPath sets the model parameter file
func WithModelPath(path string) Option {
	return func(c *Config) { c.ModelPath = path }
}

// WithSensitivities sets per-keyword sensitivities
func WithSensitivities(sensitivities ...float32) Option {
	return func(c *Config) { c.Sensitivities = sensitivities }
}

// WithLibraryPath sets the native library file
func WithLibraryPath(path string) Option {
	return func(c *Config) { c.LibraryPath = path }
}

// WithResourceDirs adds directories searched for packaged resources
func WithResourceDirs(dirs ...string) Option {
	return func(c *Config) { c.ResourceDirs = append(c.ResourceDirs, dirs...) }
}

// WithResources supplies packaged resources from an embedded tree
func WithResources(fsys fs.FS, cacheDir string) Option {
	return func(c *Config) {
		c.Resources = fsys
		c.CacheDir = cacheDir
	}
}

// Porcupine is a live wake word engine instance.
// Process and Delete are serialised; use one instance from one goroutine.
type Porcupine struct {
	mu           sync.Mutex
	lib          pvnative.Library
	handle       pvnative.Handle
	keywordPaths []string
	frameLength  int
	sampleRate   int
	version      string
	log          logger.Logger
	cleanup      runtime.Cleanup
}

type nativeEngine struct {
	lib    pvnative.Library
	handle pvnative.Handle
}

// New validates cfg, resolves resources and creates the native engine.
//
// Validation happens in this order: empty access key, sensitivity count,
// sensitivity range, then resource resolution.
func New(cfg Config) (*Porcupine, error) {
	if cfg.AccessKey == "" {
		return nil, wrap(newError(StatusInvalidArgument, "AccessKey is required for Porcupine initialization"), "init")
	}
	if len(cfg.KeywordPaths) == 0 {
		return nil, wrap(newError(StatusInvalidArgument, "At least one keyword path is required"), "init")
	}

	sensitivities := cfg.Sensitivities
	if sensitivities == nil {
		sensitivities = make([]float32, len(cfg.KeywordPaths))
		for i := range sensitivities {
			sensitivities[i] = DefaultSensitivity
		}
	}
	if len(sensitivities) != len(cfg.KeywordPaths) {
		return nil, wrap(newError(StatusInvalidArgument, fmt.Sprintf(
			"Number of sensitivity values (%d) does not match number of keywords (%d)",
			len(sensitivities), len(cfg.KeywordPaths))), "init")
	}
	for _, s := range sensitivities {
		// NaN fails both comparisons
		if !(s >= 0 && s <= 1) {
			return nil, wrap(newError(StatusInvalidArgument,
				"One or more sensitivities provided were not floating-point values between [0,1]"), "init")
		}
	}

	res := cfg.resources()

	modelPath, err := resolveModel(res, cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	keywordPaths := make([]string, len(cfg.KeywordPaths))
	for i, p := range cfg.KeywordPaths {
		resolved, err := res.ResolvePath(bundle.KindKeyword, p)
		if err != nil {
			return nil, wrap(newError(StatusIOError, fmt.Sprintf("Could not find file at path '%s'", p)), "resolve_keyword")
		}
		keywordPaths[i] = resolved
	}

	lib := cfg.library
	if lib == nil {
		lib, err = loadLibrary(res, cfg.LibraryPath)
		if err != nil {
			return nil, err
		}
	}

	return newEngine(lib, modelPath, keywordPaths, sensitivities, cfg.AccessKey)
}

func resolveModel(res *bundle.Bundle, modelPath string) (string, error) {
	if modelPath == "" {
		p, err := res.ModelPath()
		if err != nil {
			return "", wrap(newError(StatusIOError, "Unable to find the default model path"), "resolve_model")
		}
		return p, nil
	}
	p, err := res.ResolvePath(bundle.KindModel, modelPath)
	if err != nil {
		return "", wrap(newError(StatusIOError, fmt.Sprintf("Could not find file at path '%s'", modelPath)), "resolve_model")
	}
	return p, nil
}

func loadLibrary(res *bundle.Bundle, libraryPath string) (pvnative.Library, error) {
	var (
		resolved string
		err      error
	)
	if libraryPath == "" {
		resolved, err = res.LibraryPath(pvnative.LibraryFileName())
		if err != nil {
			return nil, wrap(newError(StatusIOError,
				fmt.Sprintf("Unable to find the native library '%s'", pvnative.LibraryFileName())), "load_library")
		}
	} else {
		resolved, err = res.ResolvePath(bundle.KindLibrary, libraryPath)
		if err != nil {
			return nil, wrap(newError(StatusIOError, fmt.Sprintf("Could not find file at path '%s'", libraryPath)), "load_library")
		}
	}

	lib, err := pvnative.Load(resolved)
	if err != nil {
		return nil, wrap(newError(StatusIOError, err.Error()), "load_library")
	}
	return lib, nil
}

func newEngine(lib pvnative.Library, modelPath string, keywordPaths []string, sensitivities []float32, accessKey string) (*Porcupine, error) {
	log := GetLogger()
	start := time.Now()

	// the native error stack is per thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	lib.SetSDK(currentSDK())
	handle, status := lib.Init(accessKey, modelPath, keywordPaths, sensitivities)
	if status != pvnative.StatusSuccess {
		e := nativeError(lib, status, "Porcupine init failed")
		log.Error("engine initialization failed",
			logger.String("status", e.Status.String()),
			logger.Int("stack_depth", len(e.MessageStack)),
			logger.Error(e))
		return nil, wrap(e, "init")
	}

	p := &Porcupine{
		lib:          lib,
		handle:       handle,
		keywordPaths: keywordPaths,
		frameLength:  lib.FrameLength(),
		sampleRate:   lib.SampleRate(),
		version:      lib.Version(),
		log:          log,
	}
	// Releases engines that are dropped without Delete. The cleanup must not
	// reference p, so it gets its own copy of the library and handle.
	p.cleanup = runtime.AddCleanup(p, func(n nativeEngine) {
		n.lib.Delete(n.handle)
	}, nativeEngine{lib: lib, handle: handle})

	log.Info("engine initialized",
		logger.String("version", p.version),
		logger.Int("keywords", len(keywordPaths)),
		logger.Int("frame_length", p.frameLength),
		logger.Int("sample_rate", p.sampleRate),
		logger.Duration("elapsed", time.Since(start)))

	return p, nil
}

// NewFromKeywordPaths creates an engine for keyword files
func NewFromKeywordPaths(accessKey string, keywordPaths []string, opts ...Option) (*Porcupine, error) {
	cfg := Config{AccessKey: accessKey, KeywordPaths: keywordPaths}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// NewFromKeywordPath creates an engine for a single keyword file
func NewFromKeywordPath(accessKey, keywordPath string, opts ...Option) (*Porcupine, error) {
	return NewFromKeywordPaths(accessKey, []string{keywordPath}, opts...)
}

// NewFromBuiltIns creates an engine for packaged keywords
func NewFromBuiltIns(accessKey string, keywords []BuiltInKeyword, opts ...Option) (*Porcupine, error) {
	cfg := Config{AccessKey: accessKey}
	for _, opt := range opts {
		opt(&cfg)
	}

	paths, err := builtInPaths(cfg.resources(), keywords)
	if err != nil {
		return nil, err
	}
	cfg.KeywordPaths = paths
	return New(cfg)
}

// NewFromBuiltIn creates an engine for a single packaged keyword
func NewFromBuiltIn(accessKey string, keyword BuiltInKeyword, opts ...Option) (*Porcupine, error) {
	return NewFromBuiltIns(accessKey, []BuiltInKeyword{keyword}, opts...)
}

func builtInPaths(res *bundle.Bundle, keywords []BuiltInKeyword) ([]string, error) {
	paths := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if !k.IsValid() {
			return nil, wrap(newError(StatusInvalidArgument, fmt.Sprintf("'%s' is not a built-in keyword", k)), "resolve_keyword")
		}
		p, err := res.KeywordPath(k.FileName(bundle.Platform()))
		if err != nil {
			return nil, wrap(newError(StatusIOError,
				fmt.Sprintf("Unable to open the default keyword file for keyword '%s'", k)), "resolve_keyword")
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Process runs one frame of 16-bit mono PCM at SampleRate through the engine.
// It returns the index of the detected keyword or NoDetection.
func (p *Porcupine) Process(pcm []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return NoDetection, wrap(newError(StatusInvalidState, "Porcupine must be initialized before processing"), "process")
	}
	if len(pcm) != p.frameLength {
		return NoDetection, wrap(newError(StatusInvalidArgument, fmt.Sprintf(
			"Frame of audio data must contain %d samples - given frame contained %d",
			p.frameLength, len(pcm))), "process")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	index, status := p.lib.Process(p.handle, pcm)
	if status != pvnative.StatusSuccess {
		return NoDetection, wrap(nativeError(p.lib, status, "Porcupine process failed"), "process")
	}
	if index < 0 {
		return NoDetection, nil
	}
	return int(index), nil
}

// Delete releases the native engine. Later calls do nothing.
func (p *Porcupine) Delete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return
	}
	p.cleanup.Stop()
	p.lib.Delete(p.handle)
	p.handle = 0
	p.log.Debug("engine released")
}

// Released reports whether Delete has been called
func (p *Porcupine) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle == 0
}

// FrameLength is the number of samples Process expects
func (p *Porcupine) FrameLength() int { return p.frameLength }

// SampleRate is the audio sample rate the engine expects, in Hz
func (p *Porcupine) SampleRate() int { return p.sampleRate }

// Version is the native engine version
func (p *Porcupine) Version() string { return p.version }

// Keywords returns the resolved keyword paths in index order
func (p *Porcupine) Keywords() []string {
	return slices.Clone(p.keywordPaths)
}

// EngineInfo holds the static properties of a native library
type EngineInfo struct {
	Version     string `json:"version"`
	FrameLength int    `json:"frame_length"`
	SampleRate  int    `json:"sample_rate"`
	LibraryPath string `json:"library_path"`
}

// Info loads the native library and reports its static properties without
// creating an engine. An empty libraryPath resolves the packaged library.
func Info(libraryPath string, opts ...Option) (EngineInfo, error) {
	cfg := Config{LibraryPath: libraryPath}
	for _, opt := range opts {
		opt(&cfg)
	}
	lib := cfg.library
	if lib == nil {
		var err error
		if lib, err = loadLibrary(cfg.resources(), cfg.LibraryPath); err != nil {
			return EngineInfo{}, err
		}
	}
	return EngineInfo{
		Version:     lib.Version(),
		FrameLength: lib.FrameLength(),
		SampleRate:  lib.SampleRate(),
		LibraryPath: lib.Path(),
	}, nil
}
