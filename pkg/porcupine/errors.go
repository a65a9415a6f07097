package porcupine

import (
	"fmt"
	"strings"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/pvnative"
)

// Status is a native engine status code
type Status int32

const (
	StatusSuccess                = Status(pvnative.StatusSuccess)
	StatusOutOfMemory            = Status(pvnative.StatusOutOfMemory)
	StatusIOError                = Status(pvnative.StatusIOError)
	StatusInvalidArgument        = Status(pvnative.StatusInvalidArgument)
	StatusStopIteration          = Status(pvnative.StatusStopIteration)
	StatusKeyError               = Status(pvnative.StatusKeyError)
	StatusInvalidState           = Status(pvnative.StatusInvalidState)
	StatusRuntimeError           = Status(pvnative.StatusRuntimeError)
	StatusActivationError        = Status(pvnative.StatusActivationError)
	StatusActivationLimitReached = Status(pvnative.StatusActivationLimitReached)
	StatusActivationThrottled    = Status(pvnative.StatusActivationThrottled)
	StatusActivationRefused      = Status(pvnative.StatusActivationRefused)
)

func (s Status) String() string {
	return pvnative.Status(s).String()
}

// Error is returned for every engine failure. MessageStack holds the native
// diagnostics captured when the failure happened, oldest first.
type Error struct {
	Status       Status
	Message      string
	MessageStack []string
}

// Sentinels for errors.Is. Matching compares Status only.
var (
	ErrOutOfMemory         = &Error{Status: StatusOutOfMemory}
	ErrIO                  = &Error{Status: StatusIOError}
	ErrInvalidArgument     = &Error{Status: StatusInvalidArgument}
	ErrStopIteration       = &Error{Status: StatusStopIteration}
	ErrKey                 = &Error{Status: StatusKeyError}
	ErrInvalidState        = &Error{Status: StatusInvalidState}
	ErrRuntime             = &Error{Status: StatusRuntimeError}
	ErrActivation          = &Error{Status: StatusActivationError}
	ErrActivationLimit     = &Error{Status: StatusActivationLimitReached}
	ErrActivationThrottled = &Error{Status: StatusActivationThrottled}
	ErrActivationRefused   = &Error{Status: StatusActivationRefused}
)

func (e *Error) Error() string {
	if len(e.MessageStack) == 0 {
		return e.Message
	}
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString(":")
	for i, m := range e.MessageStack {
		fmt.Fprintf(&sb, "\n  [%d] %s", i, m)
	}
	return sb.String()
}

// Is matches another *Error with the same status
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

// ErrorCategory maps the status onto the repository error categories
func (e *Error) ErrorCategory() errors.ErrorCategory {
	switch e.Status {
	case StatusOutOfMemory:
		return errors.CategoryMemory
	case StatusIOError:
		return errors.CategoryFileIO
	case StatusInvalidArgument:
		return errors.CategoryValidation
	case StatusKeyError:
		return errors.CategoryNotFound
	case StatusInvalidState:
		return errors.CategoryState
	case StatusStopIteration, StatusRuntimeError:
		return errors.CategoryEngineProcess
	case StatusActivationError, StatusActivationLimitReached,
		StatusActivationThrottled, StatusActivationRefused:
		return errors.CategoryActivation
	default:
		return errors.CategoryGeneric
	}
}

func newError(status Status, message string) *Error {
	return &Error{Status: status, Message: message}
}

// statusError builds the error for a failed native call. Unknown statuses
// get the library's status string as a message prefix.
func statusError(lib pvnative.Library, status pvnative.Status, message string, stack []string) *Error {
	s := Status(status)
	switch s {
	case StatusOutOfMemory, StatusIOError, StatusInvalidArgument, StatusStopIteration,
		StatusKeyError, StatusInvalidState, StatusRuntimeError, StatusActivationError,
		StatusActivationLimitReached, StatusActivationThrottled, StatusActivationRefused:
		return &Error{Status: s, Message: message, MessageStack: stack}
	}

	statusString := status.String()
	if lib != nil {
		statusString = lib.StatusString(status)
	}
	return &Error{Status: s, Message: statusString + ": " + message, MessageStack: stack}
}

// nativeError collects the native error stack and builds the error for a
// failed call. If the stack itself cannot be read that failure is returned.
func nativeError(lib pvnative.Library, status pvnative.Status, message string) *Error {
	stack, stackStatus := lib.ErrorStack()
	if stackStatus != pvnative.StatusSuccess {
		return statusError(lib, stackStatus, "Unable to get Porcupine error state", nil)
	}
	return statusError(lib, status, message, stack)
}

// wrap attaches component, category and context for logging and telemetry
func wrap(e *Error, operation string) error {
	return errors.New(e).
		Component("porcupine").
		Category(e.ErrorCategory()).
		Context("operation", operation).
		Context("status", e.Status.String()).
		Build()
}
