package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// Logger wraps logrus with printf-style methods so callers never touch
// entries or fields directly.
type Logger struct {
	l *logrus.Logger
}

func New(filePath string, level logrus.Level, includeStdout bool) (*Logger, error) {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})

	// No file configured: everything goes to stderr, keeping stdout free
	// for the progress line.
	if filePath == "" {
		l.SetOutput(os.Stderr)
		return &Logger{l: l}, nil
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l.SetOutput(f)

	// Mirror Info and above to stdout for Docker/CLI if enabled.
	// Debug stays file-only so it cannot break progress bar and other CLI UI elements.
	if includeStdout {
		l.AddHook(&writer.Hook{
			Writer: os.Stdout,
			LogLevels: []logrus.Level{
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
				logrus.WarnLevel,
				logrus.InfoLevel,
			},
		})
	}

	return &Logger{l: l}, nil
}

// Discard returns a logger that drops everything. Meant for tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{l: l}
}

func ParseLevel(lvl string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

func (l *Logger) Debug(f string, v ...any) { l.l.Debugf(f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.l.Infof(f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.l.Warnf(f, v...) }
func (l *Logger) Error(f string, v ...any) { l.l.Errorf(f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.l.Fatalf(f, v...) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
