// Package logx is the structured logger shared by the drivers.
//
// Nothing here is safe to call from interrupt context: handlers allocate and
// may block on the writer.
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentSAI    Component = "sai"
	ComponentTimer  Component = "timer"
	ComponentHAL    Component = "hal"
	ComponentAlarms Component = "alarms"
)

var (
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
	logMu    sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	logger = NewLogger(os.Stderr)
}

// SetLogLevel sets the minimum level for the default logger.
func SetLogLevel(level slog.Level) { logLevel.Set(level) }

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

// NewLogger creates a text logger on w that honours SetLogLevel.
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func current() *slog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func log(level slog.Level, c Component, msg string, args []any) {
	current().Log(context.Background(), level, msg, append([]any{"component", string(c)}, args...)...)
}

func LogDebug(c Component, msg string, args ...any) { log(slog.LevelDebug, c, msg, args) }
func LogInfo(c Component, msg string, args ...any)  { log(slog.LevelInfo, c, msg, args) }
func LogWarn(c Component, msg string, args ...any)  { log(slog.LevelWarn, c, msg, args) }
func LogError(c Component, msg string, args ...any) { log(slog.LevelError, c, msg, args) }

// Fatal logs err and panics with it. Used when a driver is left in a state
// nobody owns any more (a failed teardown), so there is no caller to return
// the error to.
func Fatal(c Component, msg string, err error, args ...any) {
	LogError(c, msg, append(args, "err", err)...)
	panic(err)
}
