package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	Debug bool

	entry *logrus.Logger
	file  *os.File
}

// NewLogger writes to stdout and, when logFile is set, also appends to that file.
func NewLogger(debug bool, logFile string) (*Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}

	out := &Logger{Debug: debug, entry: l}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}

		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}

		out.file = f
		l.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	return out, nil
}

// NewTestLogger discards everything. Used by tests and by callers that
// don't care about output.
func NewTestLogger() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)

	return &Logger{Debug: true, entry: l}
}

// WithOutput redirects the logger, mostly so tests can capture lines.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	l.entry.SetOutput(w)
	l.entry.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return l
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	return l.file.Close()
}

func (l *Logger) Debugf(format string, args ...any) {
	l.entry.Debugf(trim(format), args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.entry.Infof(trim(format), args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.entry.Warnf(trim(format), args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.entry.Errorf(trim(format), args...)
}

// logrus terminates entries itself
func trim(format string) string {
	return strings.TrimRight(format, "\n")
}
