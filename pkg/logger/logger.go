package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	base    = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	logFile *os.File
)

// InitLogger configures the process logger. format is "console" or "json";
// when filename is set, JSON lines are also appended to that file.
func InitLogger(level, format, filename string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var f *os.File
	if filename != "" {
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return err
		}
		f, err = os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	base = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return nil
}

// Close releases the log file opened by InitLogger, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Get returns the process logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a child logger tagged with the given component name.
func With(component string) zerolog.Logger {
	l := Get()
	return l.With().Str("component", component).Logger()
}

func Info(format string, v ...interface{}) {
	l := Get()
	l.Info().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	l := Get()
	l.Error().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	l := Get()
	l.Warn().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}
