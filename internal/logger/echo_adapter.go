package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echo_log "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter implements echo.Logger on top of a Logger, so messages
// echo logs itself (listener errors, recovered panics) use the same output
// and format as the rest of the program.
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(log.Module("echo"))
type EchoLoggerAdapter struct {
	logger Logger
	level  atomic.Uint32
}

// NewEchoLoggerAdapter creates an echo logger passing everything from debug up.
func NewEchoLoggerAdapter(log Logger) *EchoLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	a := &EchoLoggerAdapter{logger: log}
	a.level.Store(uint32(echo_log.DEBUG))
	return a
}

func (a *EchoLoggerAdapter) log(lvl echo_log.Lvl, msg string, fields ...Field) {
	if lvl < a.Level() {
		return
	}
	switch lvl {
	case echo_log.DEBUG:
		a.logger.Debug(msg, fields...)
	case echo_log.INFO:
		a.logger.Info(msg, fields...)
	case echo_log.WARN:
		a.logger.Warn(msg, fields...)
	default:
		a.logger.Error(msg, fields...)
	}
}

// Output is io.Discard; output is owned by the wrapped Logger.
func (a *EchoLoggerAdapter) Output() io.Writer   { return io.Discard }
func (a *EchoLoggerAdapter) SetOutput(io.Writer) {}
func (a *EchoLoggerAdapter) Prefix() string      { return "" }
func (a *EchoLoggerAdapter) SetPrefix(string)    {}
func (a *EchoLoggerAdapter) SetHeader(string)    {}

// Level is the threshold applied before the wrapped Logger's own level.
func (a *EchoLoggerAdapter) Level() echo_log.Lvl { return echo_log.Lvl(a.level.Load()) }

func (a *EchoLoggerAdapter) SetLevel(v echo_log.Lvl) { a.level.Store(uint32(v)) }

func (a *EchoLoggerAdapter) Print(i ...any) { a.log(echo_log.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Printf(format string, args ...any) {
	a.log(echo_log.INFO, fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Printj(j echo_log.JSON) { a.log(echo_log.INFO, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Debug(i ...any) { a.log(echo_log.DEBUG, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Debugf(format string, args ...any) {
	a.log(echo_log.DEBUG, fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Debugj(j echo_log.JSON) { a.log(echo_log.DEBUG, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Info(i ...any) { a.log(echo_log.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Infof(format string, args ...any) {
	a.log(echo_log.INFO, fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Infoj(j echo_log.JSON) { a.log(echo_log.INFO, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Warn(i ...any) { a.log(echo_log.WARN, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Warnf(format string, args ...any) {
	a.log(echo_log.WARN, fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Warnj(j echo_log.JSON) { a.log(echo_log.WARN, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Error(i ...any) { a.log(echo_log.ERROR, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, args ...any) {
	a.log(echo_log.ERROR, fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Errorj(j echo_log.JSON) { a.log(echo_log.ERROR, "echo", Any("data", j)) }

// Fatal logs at error level and panics instead of exiting, so deferred
// shutdown still runs.
func (a *EchoLoggerAdapter) Fatal(i ...any) { a.Panic(i...) }
func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.Panicf(format, args...)
}
func (a *EchoLoggerAdapter) Fatalj(j echo_log.JSON) { a.Panicj(j) }

func (a *EchoLoggerAdapter) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicj(j echo_log.JSON) {
	a.logger.Error("echo", Any("data", j))
	panic(fmt.Sprintf("%v", j))
}
