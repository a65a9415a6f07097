package errors

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const modulePath = "github.com/tphakala/go-porcupine/"

// componentPackages maps package paths below the module to component names.
// Packages not listed use their last path element.
var componentPackages = map[string]string{
	"pkg/porcupine":      "porcupine",
	"internal/conf":      "configuration",
	"internal/myaudio":   "audio",
	"internal/pvnative":  "pvnative",
	"internal/analysis":  "analysis",
	"internal/datastore": "datastore",
}

// detectComponent names the first caller outside this package that belongs
// to the module.
func detectComponent() string {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if component := componentFor(frame.Function); component != "" {
			return component
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// componentFor maps a fully qualified function name to a component, or ""
// for functions outside the module or inside this package.
func componentFor(function string) string {
	rel, ok := strings.CutPrefix(function, modulePath)
	if !ok || strings.HasPrefix(rel, "internal/errors.") {
		return ""
	}
	pkg := rel
	if slash := strings.LastIndex(pkg, "/"); slash >= 0 {
		if dot := strings.Index(pkg[slash:], "."); dot > 0 {
			pkg = pkg[:slash+dot]
		}
	} else if dot := strings.Index(pkg, "."); dot > 0 {
		pkg = pkg[:dot]
	}
	if name, ok := componentPackages[pkg]; ok {
		return name
	}
	return filepath.Base(pkg)
}

// detectCategory guesses a category for uncategorised errors from the
// message, then from the component.
func detectCategory(err error, component string) ErrorCategory {
	if category := categoryFromError(err); category != CategoryGeneric || err == nil {
		return category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "activation"):
		return CategoryActivation
	case strings.Contains(msg, "dlopen") || strings.Contains(msg, "symbol"):
		return CategoryNativeLibrary
	case strings.Contains(msg, "not found") && (strings.Contains(msg, "keyword") || strings.Contains(msg, "model")):
		return CategoryResource
	case strings.Contains(msg, "keyword") || strings.Contains(msg, "model"):
		return CategoryEngineInit
	case strings.Contains(msg, "file") || strings.Contains(msg, "read") || strings.Contains(msg, "open"):
		return CategoryFileIO
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		if component == "mqtt" {
			return CategoryMQTTConnection
		}
		return CategoryNetwork
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "mismatch"):
		return CategoryValidation
	}

	switch component {
	case "porcupine":
		return CategoryEngineProcess
	case "pvnative":
		return CategoryNativeLibrary
	case "bundle":
		return CategoryResource
	case "audio":
		return CategoryAudio
	case "datastore":
		return CategoryDatabase
	case "httpserver":
		return CategoryHTTP
	}
	return CategoryGeneric
}

// FileContext records the kind of path, its extension and a size bucket.
// The path itself is never stored.
func (eb *ErrorBuilder) FileContext(path string, size int64) *ErrorBuilder {
	if path != "" {
		kind := "relative-path"
		if filepath.IsAbs(path) || strings.ContainsAny(path, `/\`) {
			kind = "absolute-path"
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if ext == "" {
			ext = "none"
		}
		eb.Context("file_type", kind).Context("file_extension", ext)
	}
	if size > 0 {
		eb.Context("file_size_category", sizeBucket(size))
	}
	return eb
}

// ResourceContext records which kind of engine resource failed and whether
// it came from an explicit path or the packaged bundle.
func (eb *ErrorBuilder) ResourceContext(kind, path string) *ErrorBuilder {
	origin := "packaged"
	if path != "" {
		origin = "explicit"
	}
	return eb.Context("resource", kind).Context("resource_origin", origin)
}

// NetworkContext records the endpoint scheme and the timeout in effect.
func (eb *ErrorBuilder) NetworkContext(endpoint string, timeout time.Duration) *ErrorBuilder {
	if endpoint != "" {
		eb.Context("endpoint", endpointKind(endpoint))
	}
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

func sizeBucket(size int64) string {
	switch {
	case size < 1<<10:
		return "tiny"
	case size < 1<<20:
		return "small"
	case size < 10<<20:
		return "medium"
	case size < 100<<20:
		return "large"
	default:
		return "very-large"
	}
}

func endpointKind(endpoint string) string {
	scheme, _, ok := strings.Cut(strings.ToLower(endpoint), "://")
	if !ok {
		return "other"
	}
	switch scheme {
	case "tcp", "mqtt":
		return "mqtt-broker"
	case "ssl", "tls", "mqtts":
		return "mqtt-broker-tls"
	case "http", "https":
		return scheme + "-endpoint"
	default:
		return "other"
	}
}
