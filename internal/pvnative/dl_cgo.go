//go:build cgo && (linux || darwin)

package pvnative

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef int32_t pv_status_t;

static pv_status_t pv_call_init(void* f, const char* access_key, const char* model_path,
    int32_t num_keywords, const char* const* keyword_paths, const float* sensitivities, uintptr_t* out) {
    void* handle = NULL;
    pv_status_t status = ((pv_status_t (*)(const char*, const char*, int32_t, const char* const*, const float*, void**))f)(
        access_key, model_path, num_keywords, keyword_paths, sensitivities, &handle);
    *out = (uintptr_t)handle;
    return status;
}

static pv_status_t pv_call_process(void* f, uintptr_t handle, const int16_t* pcm, int32_t* keyword_index) {
    return ((pv_status_t (*)(void*, const int16_t*, int32_t*))f)((void*)handle, pcm, keyword_index);
}

static void pv_call_delete(void* f, uintptr_t handle) {
    ((void (*)(void*))f)((void*)handle);
}

static int32_t pv_call_int(void* f) {
    return ((int32_t (*)(void))f)();
}

static const char* pv_call_version(void* f) {
    return ((const char* (*)(void))f)();
}

static pv_status_t pv_call_get_error_stack(void* f, char*** stack, int32_t* depth) {
    return ((pv_status_t (*)(char***, int32_t*))f)(stack, depth);
}

static void pv_call_free_error_stack(void* f, char** stack) {
    ((void (*)(char**))f)(stack);
}

static const char* pv_call_status_to_string(void* f, pv_status_t status) {
    return ((const char* (*)(pv_status_t))f)(status);
}

static void pv_call_set_sdk(void* f, const char* sdk) {
    ((void (*)(const char*))f)(sdk);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// dlLibrary holds resolved symbols of a dlopen'ed libpv_porcupine
type dlLibrary struct {
	path string
	lib  unsafe.Pointer

	init           unsafe.Pointer
	process        unsafe.Pointer
	del            unsafe.Pointer
	frameLength    unsafe.Pointer
	sampleRate     unsafe.Pointer
	version        unsafe.Pointer
	getErrorStack  unsafe.Pointer
	freeErrorStack unsafe.Pointer
	statusToString unsafe.Pointer
	setSDK         unsafe.Pointer // absent in older releases
}

func open(path string) (Library, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	lib := C.dlopen(cPath, C.RTLD_NOW|C.RTLD_LOCAL)
	if lib == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	l := &dlLibrary{path: path, lib: lib}
	required := []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{"pv_porcupine_init", &l.init},
		{"pv_porcupine_process", &l.process},
		{"pv_porcupine_delete", &l.del},
		{"pv_porcupine_frame_length", &l.frameLength},
		{"pv_sample_rate", &l.sampleRate},
		{"pv_porcupine_version", &l.version},
		{"pv_get_error_stack", &l.getErrorStack},
		{"pv_free_error_stack", &l.freeErrorStack},
		{"pv_status_to_string", &l.statusToString},
	}
	for _, sym := range required {
		ptr := lookup(lib, sym.name)
		if ptr == nil {
			C.dlclose(lib)
			return nil, fmt.Errorf("symbol %s not found in %s", sym.name, path)
		}
		*sym.dst = ptr
	}
	l.setSDK = lookup(lib, "pv_set_sdk")

	return l, nil
}

func lookup(lib unsafe.Pointer, name string) unsafe.Pointer {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return C.dlsym(lib, cName)
}

func (l *dlLibrary) Path() string { return l.path }

func (l *dlLibrary) Init(accessKey, modelPath string, keywordPaths []string, sensitivities []float32) (Handle, Status) {
	cAccessKey := C.CString(accessKey)
	defer C.free(unsafe.Pointer(cAccessKey))
	cModelPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cModelPath))

	n := len(keywordPaths)
	var cPaths **C.char
	var cSens *C.float
	if n > 0 {
		cPaths = (**C.char)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0)))))
		defer C.free(unsafe.Pointer(cPaths))
		paths := unsafe.Slice(cPaths, n)
		for i, p := range keywordPaths {
			paths[i] = C.CString(p)
		}
		defer func() {
			for i := range paths {
				C.free(unsafe.Pointer(paths[i]))
			}
		}()

		cSens = (*C.float)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.float(0)))))
		defer C.free(unsafe.Pointer(cSens))
		sens := unsafe.Slice(cSens, n)
		for i, s := range sensitivities {
			sens[i] = C.float(s)
		}
	}

	var out C.uintptr_t
	status := C.pv_call_init(l.init, cAccessKey, cModelPath, C.int32_t(n), cPaths, cSens, &out)
	return Handle(out), Status(status)
}

func (l *dlLibrary) Process(h Handle, pcm []int16) (int32, Status) {
	var index C.int32_t = -1
	var pcmPtr *C.int16_t
	if len(pcm) > 0 {
		pcmPtr = (*C.int16_t)(unsafe.Pointer(&pcm[0]))
	}
	status := C.pv_call_process(l.process, C.uintptr_t(h), pcmPtr, &index)
	return int32(index), Status(status)
}

func (l *dlLibrary) Delete(h Handle) {
	if h == 0 {
		return
	}
	C.pv_call_delete(l.del, C.uintptr_t(h))
}

func (l *dlLibrary) FrameLength() int {
	return int(C.pv_call_int(l.frameLength))
}

func (l *dlLibrary) SampleRate() int {
	return int(C.pv_call_int(l.sampleRate))
}

func (l *dlLibrary) Version() string {
	return C.GoString(C.pv_call_version(l.version))
}

func (l *dlLibrary) ErrorStack() ([]string, Status) {
	var stack **C.char
	var depth C.int32_t
	status := Status(C.pv_call_get_error_stack(l.getErrorStack, &stack, &depth))
	if status != StatusSuccess {
		return nil, status
	}
	if stack == nil {
		return nil, StatusSuccess
	}
	defer C.pv_call_free_error_stack(l.freeErrorStack, stack)

	entries := unsafe.Slice(stack, int(depth))
	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, C.GoString(e))
	}
	return messages, StatusSuccess
}

func (l *dlLibrary) StatusString(s Status) string {
	cs := C.pv_call_status_to_string(l.statusToString, C.pv_status_t(s))
	if cs == nil {
		return s.String()
	}
	return C.GoString(cs)
}

func (l *dlLibrary) SetSDK(name string) {
	if l.setSDK == nil {
		return
	}
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	C.pv_call_set_sdk(l.setSDK, cName)
}
