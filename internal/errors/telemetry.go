package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every error built while it is enabled.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// ErrorHook observes every error built while reporting is active.
type ErrorHook func(ee *EnhancedError)

var (
	telemetryMu sync.RWMutex
	reporter    TelemetryReporter
	errorHooks  []ErrorHook

	// Build skips stack inspection entirely while this is false.
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs r. nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	reporter = r
	refreshReporting()
}

// GetTelemetryReporter returns the installed reporter.
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return reporter
}

// AddErrorHook registers hook.
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	errorHooks = append(errorHooks, hook)
	refreshReporting()
}

// ClearErrorHooks removes every hook.
func ClearErrorHooks() {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	errorHooks = nil
	refreshReporting()
}

func refreshReporting() {
	hasActiveReporting.Store(len(errorHooks) > 0 || (reporter != nil && reporter.IsEnabled()))
}

func reportToTelemetry(ee *EnhancedError) {
	telemetryMu.RLock()
	r, hooks := reporter, errorHooks
	telemetryMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
	if r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter sends errors to Sentry after scrubbing secrets from the
// message and string context values.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a reporter. sentry.Init must already have run.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError captures ee once.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	title := errorTitle(ee)
	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))
	level := sentryLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.ComponentName())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.ComponentName(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// errorTitle groups events in Sentry, for example
// "Porcupine Engine Initialization Error Engine Init".
func errorTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.ComponentName(); c != ComponentUnknown {
		parts = append(parts, titleWords(c))
	}
	if ee.Category != "" {
		parts = append(parts, categoryTitle(ee.Category))
	}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		parts = append(parts, titleWords(op))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

var categoryTitles = map[ErrorCategory]string{
	CategoryEngineInit:     "Engine Initialization Error",
	CategoryEngineProcess:  "Engine Processing Error",
	CategoryNativeLibrary:  "Native Library Error",
	CategoryActivation:     "Activation Error",
	CategoryFileIO:         "File I/O Error",
	CategoryAudio:          "Audio Error",
	CategoryAudioSource:    "Audio Error",
	CategoryMQTTConnection: "MQTT Error",
	CategoryMQTTPublish:    "MQTT Error",
}

func categoryTitle(category ErrorCategory) string {
	if title, ok := categoryTitles[category]; ok {
		return title
	}
	return titleWords(string(category)) + " Error"
}

// titleWords turns snake_case or kebab-case into Title Case words.
func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryValidation:
		return sentry.LevelInfo
	case CategoryNetwork, CategoryHTTP, CategoryMQTTConnection, CategoryMQTTPublish,
		CategoryFileIO, CategoryAudio, CategoryAudioSource, CategoryState:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// PrivacyScrubber redacts text before it leaves the process.
type PrivacyScrubber func(string) string

var privacyScrubber atomic.Pointer[PrivacyScrubber]

// SetPrivacyScrubber installs s to run ahead of the built-in patterns.
// nil removes it.
func SetPrivacyScrubber(s PrivacyScrubber) {
	if s == nil {
		privacyScrubber.Store(nil)
		return
	}
	privacyScrubber.Store(&s)
}

func scrubMessage(message string) string {
	if s := privacyScrubber.Load(); s != nil {
		message = (*s)(message)
	}
	return basicURLScrub(message)
}

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParam      = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)

	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)access[_-]?key[=:]\s*\S+`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)(token|auth|password)[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
		regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`),
	}
	identifierPattern = regexp.MustCompile(`(?i)(user|device|client)[_-]?id[=:]\S+`)
)

// basicURLScrub strips query strings, credentials, access keys and client
// identifiers from message.
func basicURLScrub(message string) string {
	out := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	out = queryParam.ReplaceAllString(out, "?[REDACTED]")
	for _, re := range secretPatterns {
		out = re.ReplaceAllString(out, "[API_KEY_REDACTED]")
	}
	return identifierPattern.ReplaceAllString(out, "[ID_REDACTED]")
}
