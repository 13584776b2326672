package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ncobase/genqueue/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Key constants
const (
	VersionKey = "version"
	ErrorKey   = "error"
)

// Logger wraps logrus with context aware helpers.
type Logger struct {
	*logrus.Logger
	mu           sync.Mutex
	version      string
	logFile      *os.File
	logPath      string
	desensitizer *Desensitizer
	stopRotate   chan struct{}
}

var (
	standardLogger *Logger
	once           sync.Once
)

// StdLogger returns the singleton logger instance
func StdLogger() *Logger {
	once.Do(func() {
		standardLogger = newLogger()
	})
	return standardLogger
}

func newLogger() *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	l.desensitizer = NewDesensitizer(nil)
	return l
}

// NewWithWriter returns a standalone logger writing JSON to w.
func NewWithWriter(w io.Writer) *Logger {
	l := newLogger()
	l.SetOutput(w)
	return l
}

// New initializes the standard logger and returns its cleanup function.
func New(c *config.Config) (func(), error) {
	return StdLogger().Init(c)
}

// SetVersion sets the version stamped on every entry of the standard logger.
func SetVersion(v string) {
	StdLogger().SetVersion(v)
}

// SetVersion sets the version for logging
func (l *Logger) SetVersion(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version = v
}

// Init initializes the logger with the given configuration
func (l *Logger) Init(c *config.Config) (func(), error) {
	if c == nil {
		return func() {}, nil
	}

	l.SetLevel(logrus.Level(c.Level))

	switch c.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	l.desensitizer = NewDesensitizer(c.Desensitization)

	switch c.Output {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if c.OutputFile == "" {
			return nil, fmt.Errorf("logger output is file but output_file is empty")
		}
		l.logPath = c.OutputFile
		if err := l.setupLogFile(); err != nil {
			return nil, err
		}
		l.stopRotate = make(chan struct{})
		go l.periodicLogRotation(l.stopRotate)
	default:
		l.SetOutput(os.Stdout)
	}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.stopRotate != nil {
			close(l.stopRotate)
			l.stopRotate = nil
		}
		if l.logFile != nil {
			_ = l.logFile.Close()
			l.logFile = nil
		}
	}, nil
}

func (l *Logger) setupLogFile() error {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o755); err != nil {
		return err
	}
	return l.rotateLog()
}

func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return err
		}
	}

	logFilePath := fmt.Sprintf("%s.%s.log", strings.TrimSuffix(l.logPath, ".log"), time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	l.logFile = f
	l.SetOutput(l.logFile)
	return nil
}

func (l *Logger) periodicLogRotation(stop <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := l.rotateLog(); err != nil {
				l.Logger.Errorf("Error rotating log: %v", err)
			}
		}
	}
}

// entryFromContext creates a new log entry with fields from context
func (l *Logger) entryFromContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}

	if ctx != nil {
		if traceID := getTraceID(ctx); traceID != "" {
			fields[traceKey] = traceID
		}
	}

	l.mu.Lock()
	if l.version != "" {
		fields[VersionKey] = l.version
	}
	l.mu.Unlock()

	return l.WithFields(fields)
}

// log writes args at level. A leading message followed by key/value pairs
// becomes a structured entry: log(ctx, lvl, "Job submitted", "job_id", id).
func (l *Logger) log(ctx context.Context, level logrus.Level, args ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}

	entry := l.entryFromContext(ctx)
	if msg, fields, ok := splitKeyValues(args); ok {
		if l.desensitizer != nil {
			fields = l.desensitizer.DesensitizeFields(fields)
		}
		entry.WithFields(fields).Log(level, msg)
		return
	}
	entry.Log(level, args...)
}

func (l *Logger) logf(ctx context.Context, level logrus.Level, format string, args ...any) {
	l.entryFromContext(ctx).Logf(level, format, args...)
}

// splitKeyValues reports whether args is a message followed by key/value pairs.
func splitKeyValues(args []any) (string, logrus.Fields, bool) {
	if len(args) < 3 || len(args)%2 == 0 {
		return "", nil, false
	}
	msg, ok := args[0].(string)
	if !ok {
		return "", nil, false
	}

	fields := make(logrus.Fields, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return "", nil, false
		}
		if err, isErr := args[i+1].(error); isErr && err != nil {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return msg, fields, true
}

func (l *Logger) Trace(ctx context.Context, args ...any) { l.log(ctx, logrus.TraceLevel, args...) }
func (l *Logger) Debug(ctx context.Context, args ...any) { l.log(ctx, logrus.DebugLevel, args...) }
func (l *Logger) Info(ctx context.Context, args ...any)  { l.log(ctx, logrus.InfoLevel, args...) }
func (l *Logger) Warn(ctx context.Context, args ...any)  { l.log(ctx, logrus.WarnLevel, args...) }
func (l *Logger) Error(ctx context.Context, args ...any) { l.log(ctx, logrus.ErrorLevel, args...) }

func (l *Logger) Fatal(ctx context.Context, args ...any) {
	l.log(ctx, logrus.FatalLevel, args...)
	l.Exit(1)
}

func (l *Logger) Tracef(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.TraceLevel, format, args...)
}
func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.DebugLevel, format, args...)
}
func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.InfoLevel, format, args...)
}
func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.WarnLevel, format, args...)
}
func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.ErrorLevel, format, args...)
}
func (l *Logger) Fatalf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.FatalLevel, format, args...)
	l.Exit(1)
}

// Package level helpers write to the standard logger.

func Trace(ctx context.Context, args ...any) { StdLogger().Trace(ctx, args...) }
func Debug(ctx context.Context, args ...any) { StdLogger().Debug(ctx, args...) }
func Info(ctx context.Context, args ...any)  { StdLogger().Info(ctx, args...) }
func Warn(ctx context.Context, args ...any)  { StdLogger().Warn(ctx, args...) }
func Error(ctx context.Context, args ...any) { StdLogger().Error(ctx, args...) }
func Fatal(ctx context.Context, args ...any) { StdLogger().Fatal(ctx, args...) }

func Tracef(ctx context.Context, format string, args ...any) {
	StdLogger().Tracef(ctx, format, args...)
}
func Debugf(ctx context.Context, format string, args ...any) {
	StdLogger().Debugf(ctx, format, args...)
}
func Infof(ctx context.Context, format string, args ...any) {
	StdLogger().Infof(ctx, format, args...)
}
func Warnf(ctx context.Context, format string, args ...any) {
	StdLogger().Warnf(ctx, format, args...)
}
func Errorf(ctx context.Context, format string, args ...any) {
	StdLogger().Errorf(ctx, format, args...)
}
func Fatalf(ctx context.Context, format string, args ...any) {
	StdLogger().Fatalf(ctx, format, args...)
}
