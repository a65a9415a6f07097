package porcupine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/go-porcupine/internal/pvnative"
)

// fakeLibrary stands in for libpv_porcupine
type fakeLibrary struct {
	mu sync.Mutex

	frameLength int
	sampleRate  int
	version     string

	initStatus    pvnative.Status
	processStatus pvnative.Status
	processIndex  int32
	stack         []string
	stackStatus   pvnative.Status

	nextHandle   pvnative.Handle
	initCalls    int
	processCalls int
	deleteCalls  map[pvnative.Handle]int

	sdk           string
	accessKey     string
	modelPath     string
	keywordPaths  []string
	sensitivities []float32
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		frameLength:  512,
		sampleRate:   16000,
		version:      "3.0.0",
		processIndex: -1,
		nextHandle:   0x1000,
		deleteCalls:  make(map[pvnative.Handle]int),
	}
}

func (f *fakeLibrary) Init(accessKey, modelPath string, keywordPaths []string, sensitivities []float32) (pvnative.Handle, pvnative.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.accessKey = accessKey
	f.modelPath = modelPath
	f.keywordPaths = slices.Clone(keywordPaths)
	f.sensitivities = slices.Clone(sensitivities)
	if f.initStatus != pvnative.StatusSuccess {
		return 0, f.initStatus
	}
	f.nextHandle++
	return f.nextHandle, pvnative.StatusSuccess
}

func (f *fakeLibrary) Process(h pvnative.Handle, pcm []int16) (int32, pvnative.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if len(pcm) != f.frameLength {
		panic("fake library received a frame of the wrong length")
	}
	if f.processStatus != pvnative.StatusSuccess {
		return -1, f.processStatus
	}
	for _, s := range pcm {
		if s != 0 {
			return f.processIndex, pvnative.StatusSuccess
		}
	}
	return -1, pvnative.StatusSuccess
}

func (f *fakeLibrary) Delete(h pvnative.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls[h]++
}

func (f *fakeLibrary) FrameLength() int { return f.frameLength }
func (f *fakeLibrary) SampleRate() int  { return f.sampleRate }
func (f *fakeLibrary) Version() string  { return f.version }
func (f *fakeLibrary) Path() string     { return "/fake/libpv_porcupine.so" }

func (f *fakeLibrary) ErrorStack() ([]string, pvnative.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stackStatus != pvnative.StatusSuccess {
		return nil, f.stackStatus
	}
	stack := f.stack
	f.stack = nil
	return stack, pvnative.StatusSuccess
}

func (f *fakeLibrary) StatusString(s pvnative.Status) string {
	return fmt.Sprintf("FAKE_%d", int32(s))
}

func (f *fakeLibrary) SetSDK(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sdk = name
}

func (f *fakeLibrary) totalDeletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.deleteCalls {
		n += c
	}
	return n
}
