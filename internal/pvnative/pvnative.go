// Package pvnative loads the Porcupine shared library and exposes its C
// function table as a Go interface.
//
// Handles returned by Init are opaque and owned by the caller. Nothing here
// validates arguments; that belongs to pkg/porcupine.
package pvnative

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

// Status is the native pv_status_t value
type Status int32

const (
	StatusSuccess Status = iota
	StatusOutOfMemory
	StatusIOError
	StatusInvalidArgument
	StatusStopIteration
	StatusKeyError
	StatusInvalidState
	StatusRuntimeError
	StatusActivationError
	StatusActivationLimitReached
	StatusActivationThrottled
	StatusActivationRefused
)

var statusNames = [...]string{
	StatusSuccess:                "SUCCESS",
	StatusOutOfMemory:            "OUT_OF_MEMORY",
	StatusIOError:                "IO_ERROR",
	StatusInvalidArgument:        "INVALID_ARGUMENT",
	StatusStopIteration:          "STOP_ITERATION",
	StatusKeyError:               "KEY_ERROR",
	StatusInvalidState:           "INVALID_STATE",
	StatusRuntimeError:           "RUNTIME_ERROR",
	StatusActivationError:        "ACTIVATION_ERROR",
	StatusActivationLimitReached: "ACTIVATION_LIMIT_REACHED",
	StatusActivationThrottled:    "ACTIVATION_THROTTLED",
	StatusActivationRefused:      "ACTIVATION_REFUSED",
}

// String returns the native status name. The library's own
// pv_status_to_string is preferred when a Library is at hand.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("STATUS_%d", int32(s))
}

// Handle is an opaque pointer to a native engine instance. Zero means no engine.
type Handle uintptr

// Library is the native call surface of libpv_porcupine
type Library interface {
	// Init creates an engine. keywordPaths and sensitivities have equal length.
	Init(accessKey, modelPath string, keywordPaths []string, sensitivities []float32) (Handle, Status)
	// Process runs one frame and returns the detected keyword index or -1.
	Process(h Handle, pcm []int16) (int32, Status)
	// Delete destroys an engine. Calling it twice on one handle is undefined.
	Delete(h Handle)
	FrameLength() int
	SampleRate() int
	Version() string
	// ErrorStack returns the messages accumulated by the last failing call
	// on this thread and clears them.
	ErrorStack() ([]string, Status)
	StatusString(s Status) string
	SetSDK(name string)
	// Path is the file the library was loaded from
	Path() string
}

// ErrUnavailable is returned by Load when the binary was built without cgo
var ErrUnavailable = errors.NewStd("native library loading requires cgo on linux or darwin")

var (
	loadedMu sync.Mutex
	loaded   = make(map[string]Library)
)

// Load opens the shared library at path. Libraries stay loaded for the life
// of the process; loading the same path twice returns the same Library.
func Load(path string) (Library, error) {
	if path == "" {
		return nil, errors.Newf("native library path is empty").
			Component("pvnative").
			Category(errors.CategoryNativeLibrary).
			Build()
	}

	loadedMu.Lock()
	defer loadedMu.Unlock()

	if lib, ok := loaded[path]; ok {
		return lib, nil
	}

	lib, err := open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("pvnative").
			Category(errors.CategoryNativeLibrary).
			Context("library", path).
			Context("goos", runtime.GOOS).
			Build()
	}

	GetLogger().Debug("loaded native library",
		logger.String("path", path),
		logger.String("version", lib.Version()),
		logger.Int("frame_length", lib.FrameLength()),
		logger.Int("sample_rate", lib.SampleRate()))

	loaded[path] = lib
	return lib, nil
}

// LibraryFileName returns the platform file name of the shared library
func LibraryFileName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libpv_porcupine.dylib"
	case "windows":
		return "libpv_porcupine.dll"
	default:
		return "libpv_porcupine.so"
	}
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the pvnative package logger
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("pvnative")
	})
	return serviceLogger
}
