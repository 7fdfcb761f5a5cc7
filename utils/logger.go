package utils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Logger wraps standard log with level-based output. Warnings and errors are
// mirrored to Rollbar once EnableRollbar has been called.
type Logger struct {
	info    *log.Logger
	warn    *log.Logger
	error   *log.Logger
	debug   *log.Logger
	rollbar bool
}

// Log is the process-wide logger.
var Log = NewLogger()

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo writes info, warn and debug lines to out and errors to errOut.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	flags := log.LstdFlags | log.Lmsgprefix
	return &Logger{
		info:  log.New(out, "[INFO]  ", flags),
		warn:  log.New(out, "[WARN]  ", flags),
		error: log.New(errOut, "[ERROR] ", flags),
		debug: log.New(out, "[DEBUG] ", flags),
	}
}

// EnableRollbar configures the Rollbar client. An empty token leaves
// reporting off.
func (l *Logger) EnableRollbar(token, environment, codeVersion string) {
	if token == "" {
		return
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetCodeVersion(codeVersion)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	l.rollbar = true
}

// Close flushes queued Rollbar items.
func (l *Logger) Close() {
	if l.rollbar {
		rollbar.Wait()
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.info.Printf(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.debug.Printf(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.warn.Printf(msg, args...)
	if l.rollbar {
		rollbar.Warning(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.error.Printf(msg, args...)
	if l.rollbar {
		rollbar.Error(errors.New(fmt.Sprintf(msg, args...)))
	}
}

// Critical reports a recovered panic or other unexpected failure together with
// extra context.
func (l *Logger) Critical(err error, extras map[string]interface{}) {
	l.error.Printf("%v %v", err, extras)
	if l.rollbar {
		rollbar.Critical(err, extras)
	}
}
