package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger sends records to the console at the configured level and to a log file at every level
type Logger struct {
	*logrus.Logger
	logFile *os.File
}

// ParseLevel maps configuration level names to logrus levels. WARNING and CRITICAL are accepted aliases.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "WARNING":
		return logrus.WarnLevel, nil
	case "CRITICAL":
		return logrus.FatalLevel, nil
	}
	return logrus.ParseLevel(level)
}

// Setup builds a logger. An empty logFile disables the file sink; a nil console disables the console sink.
func Setup(level, logFile string, console io.Writer) (*Logger, error) {
	consoleLevel, err := ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.DebugLevel)

	l := &Logger{Logger: base}

	if console != nil {
		base.AddHook(&writerHook{
			writer: console,
			levels: levelsUpTo(consoleLevel),
			formatter: &logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			},
		})
	}

	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.logFile = file
		base.AddHook(&writerHook{
			writer:    file,
			levels:    logrus.AllLevels,
			formatter: &logrus.JSONFormatter{},
		})
	}

	base.WithFields(logrus.Fields{"level": consoleLevel.String(), "file": logFile}).Debug("logging configured")
	return l, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// Discard returns a logger that drops everything, for tests and library defaults
func Discard() logrus.FieldLogger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return base
}

func levelsUpTo(max logrus.Level) []logrus.Level {
	var levels []logrus.Level
	for _, lvl := range logrus.AllLevels {
		if lvl <= max {
			levels = append(levels, lvl)
		}
	}
	return levels
}

type writerHook struct {
	mu        sync.Mutex
	writer    io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}
