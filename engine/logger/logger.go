// Package logger provides the engine-wide structured logger.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures the engine logger.
type Options struct {
	// Level is the minimum level name: "debug", "info", "warn", "error" or "fatal".
	Level string
	// Prefix is prepended to every line.
	Prefix string
	// ReportCaller adds the calling file and line to every line.
	ReportCaller bool
	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

var (
	once      sync.Once
	mu        sync.RWMutex
	singleton *log.Logger
)

func build(opts Options) (*log.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "oxy"
	}
	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	l.SetLevel(level)
	return l, nil
}

// Get returns the shared logger, creating it with default options on first use.
//
// Returns:
//   - *log.Logger: the engine logger
func Get() *log.Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if singleton == nil {
			singleton, _ = build(Options{})
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// Configure replaces the shared logger.
//
// Parameters:
//   - opts: the logger options
//
// Returns:
//   - error: an error if the level name is unknown
func Configure(opts Options) error {
	l, err := build(opts)
	if err != nil {
		return err
	}
	once.Do(func() {})
	mu.Lock()
	singleton = l
	mu.Unlock()
	return nil
}

// Component returns a sub-logger tagged with the component name.
//
// Parameters:
//   - name: the component name
//
// Returns:
//   - *log.Logger: the tagged logger
func Component(name string) *log.Logger {
	return Get().With("component", name)
}

func Debug(msg string, keyvals ...any) {
	Get().Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...any) {
	Get().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...any) {
	Get().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...any) {
	Get().Error(msg, keyvals...)
}
