// Package errors wraps errors with a category, the component that raised
// them and structured context, and optionally forwards them to telemetry.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for metrics labels and telemetry fingerprints.
type ErrorCategory string

// CategorizedError is implemented by errors that know their own category,
// such as engine status errors.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryEngineInit     ErrorCategory = "engine-initialization"
	CategoryEngineProcess  ErrorCategory = "engine-processing"
	CategoryNativeLibrary  ErrorCategory = "native-library"
	CategoryActivation     ErrorCategory = "activation"
	CategoryResource       ErrorCategory = "resource"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryValidation     ErrorCategory = "validation"
	CategoryState          ErrorCategory = "state"
	CategoryMemory         ErrorCategory = "memory"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryFileParsing    ErrorCategory = "file-parsing"
	CategoryAudio          ErrorCategory = "audio-processing"
	CategoryAudioSource    ErrorCategory = "audio-source"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryNetwork        ErrorCategory = "network"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryDatabase       ErrorCategory = "database"
	CategoryCancellation   ErrorCategory = "cancellation"
	CategoryGeneric        ErrorCategory = "generic"
)

// ComponentUnknown is reported when no component was set or detected.
const ComponentUnknown = "unknown"

// EnhancedError is an error with category, component and context attached.
// It is immutable once built apart from the reported flag.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Timestamp time.Time

	component string
	context   map[string]any
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category, anything else through the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// ComponentName returns the component that raised the error.
func (ee *EnhancedError) ComponentName() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetContext returns a copy of the error context.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.context == nil {
		return nil
	}
	return maps.Clone(ee.context)
}

// MarkReported records that telemetry has seen the error.
func (ee *EnhancedError) MarkReported() { ee.reported.Store(true) }

// IsReported reports whether telemetry has seen the error.
func (ee *EnhancedError) IsReported() bool { return ee.reported.Load() }

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the component raising the error. Unset components are
// detected from the call stack when telemetry is active.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category overrides the category. Without it the category comes from the
// wrapped error, or from the message when telemetry is active.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context attaches a key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// Timing records the operation name and how long it ran.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", duration.Milliseconds())
}

// Build creates the error and hands it to the telemetry reporter and hooks.
func (eb *ErrorBuilder) Build() *EnhancedError {
	reporting := hasActiveReporting.Load()

	component := eb.component
	if component == "" && reporting {
		component = detectComponent()
	}
	category := eb.category
	if category == "" {
		if reporting {
			category = detectCategory(eb.err, component)
		} else {
			category = categoryFromError(eb.err)
		}
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Timestamp: time.Now(),
		component: component,
		context:   eb.context,
	}
	if reporting {
		reportToTelemetry(ee)
	}
	return ee
}

// FileError wraps a file system error with anonymised path context.
func FileError(err error, path string, size int64) *EnhancedError {
	return New(err).
		Category(CategoryFileIO).
		FileContext(path, size).
		Build()
}

// ValidationError creates a validation error from message.
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// NewStd is errors.New from the standard library.
func NewStd(text string) error { return stderrors.New(text) }

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap is errors.Unwrap from the standard library.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join is errors.Join from the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err wraps an EnhancedError of category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// CategoryOf returns the most specific category declared by err or anything
// it wraps. Uncategorised errors report CategoryGeneric and nil reports "".
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var ee *EnhancedError
	if As(err, &ee) && ee.Category != "" && ee.Category != CategoryGeneric {
		return ee.Category
	}
	return categoryFromError(err)
}

func categoryFromError(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}
	var ce CategorizedError
	if As(err, &ce) {
		return ce.ErrorCategory()
	}
	var ee *EnhancedError
	if As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return CategoryGeneric
}
