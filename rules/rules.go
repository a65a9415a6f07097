//go:build ruleguard

// Package gorules defines project linter rules for go-ruleguard (gocritic's
// ruleguard checker).
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StdErrors detects stdlib error constructors outside tests and the errors
// package itself.
//
// The old pattern:
//
//	return errors.New("frame too short")
//
// New pattern:
//
//	return errors.Newf("frame too short").
//	    Component("myaudio").
//	    Category(errors.CategoryValidation).
//	    Build()
//
// Errors built this way carry a component and category that metrics and
// Sentry reporting group by.
func StdErrors(m dsl.Matcher) {
	m.Match(`errors.New($msg)`).
		Where(!m.File().Name.Matches(`_test\.go$`) &&
			!m.File().PkgPath.Matches(`internal/errors$`)).
		Report("use the internal/errors builder instead of stdlib errors.New so the error carries a component and category")
}

// UnlockOSThreadDeferred detects LockOSThread paired with a trailing
// UnlockOSThread.
//
// Native calls must read their error stack on the thread that made the call;
// an early return between the two calls leaves the goroutine wired to the thread.
func UnlockOSThreadDeferred(m dsl.Matcher) {
	m.Match(`runtime.LockOSThread(); $*body; runtime.UnlockOSThread()`).
		Report("use defer runtime.UnlockOSThread() right after runtime.LockOSThread()").
		Suggest("runtime.LockOSThread(); defer runtime.UnlockOSThread(); $body")
}

// IgnoredProcessError detects engine Process calls whose error is dropped.
//
// ErrInvalidState and the activation errors mean every later frame will fail
// the same way.
func IgnoredProcessError(m dsl.Matcher) {
	m.Import("github.com/tphakala/go-porcupine/pkg/porcupine")

	m.Match(`$_, _ := $p.Process($_)`, `$_, _ = $p.Process($_)`, `_, _ = $p.Process($_)`).
		Where(m["p"].Type.Is("*porcupine.Porcupine")).
		Report("handle the error from $p.Process; ErrInvalidState and activation errors are not recoverable")
}

// SetFinalizerDeprecated detects runtime.SetFinalizer and suggests runtime.AddCleanup.
//
// Native handles are released with runtime.AddCleanup (Go 1.24+): the cleanup
// gets its own copy of the handle and can be stopped once Delete runs.
func SetFinalizerDeprecated(m dsl.Matcher) {
	m.Match(`runtime.SetFinalizer($obj, $fn)`).
		Report("use runtime.AddCleanup instead of runtime.SetFinalizer (Go 1.24+)")
}

// SleepInTests detects time.Sleep used to wait for goroutines in tests.
func SleepInTests(m dsl.Matcher) {
	m.Match(`time.Sleep($d)`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("wait on a channel or use require.Eventually instead of time.Sleep")
}

// WaitGroupGo detects the manual Add/Done pattern.
//
// The old pattern:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    doSomething()
//	}()
//
// New pattern (Go 1.25+):
//
//	wg.Go(func() {
//	    doSomething()
//	})
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")
}
