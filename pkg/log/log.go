package log

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DefaultLoggerFlag is the flag set used by the default logger.
const DefaultLoggerFlag = log.Ldate | log.Ltime | log.Lmicroseconds

var (
	defaultLogger *Logger
	defaultLock   sync.RWMutex
)

func init() {
	defaultLogger = New(os.Stdout, "", DefaultLoggerFlag, LogLevelInfo)
}

type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (level LogLevel) String() string {
	switch level {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a log level string into a LogLevel.
// Valid log levels are: error, warn, info, debug, trace.
func ParseLogLevel(level string) (LogLevel, error) {
	switch level {
	case "error":
		return LogLevelError, nil
	case "warn":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "trace":
		return LogLevelTrace, nil
	default:
		return LogLevelError, fmt.Errorf("unknown log level: %s", level)
	}
}

// SetDefaultLogger replaces the logger used by the package-level functions.
func SetDefaultLogger(logger *Logger) {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	defaultLogger = logger
}

// Default returns the logger used by the package-level functions.
func Default() *Logger {
	defaultLock.RLock()
	defer defaultLock.RUnlock()
	return defaultLogger
}

func SetLevel(level LogLevel) {
	Default().SetLevel(level)
	Default().Info("Log level set to %s", level)
}

type Logger struct {
	logger    *log.Logger
	lock      sync.RWMutex
	level     LogLevel
	component string
	parent    *Logger
	// deferred component loggers resolve the default logger on every call so
	// they can be declared before SetDefaultLogger runs.
	deferred bool
}

func New(out io.Writer, prefix string, flag int, level LogLevel) *Logger {
	return &Logger{
		logger: log.New(out, prefix, flag),
		level:  level,
	}
}

// Component returns a logger that tags every entry with the given component
// name. It shares output and level with its parent.
func (l *Logger) Component(name string) *Logger {
	root := l.root()
	return &Logger{
		logger:    root.logger,
		component: name,
		parent:    root,
	}
}

func (l *Logger) root() *Logger {
	if l.deferred {
		return Default()
	}
	if l.parent != nil {
		return l.parent
	}
	return l
}

func (l *Logger) SetLevel(level LogLevel) {
	root := l.root()
	root.lock.Lock()
	defer root.lock.Unlock()
	root.level = level
}

func (l *Logger) Level() LogLevel {
	root := l.root()
	root.lock.RLock()
	defer root.lock.RUnlock()
	return root.level
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if level > l.Level() {
		return
	}
	logEntry := map[string]interface{}{
		"level": level.String(),
		"msg":   fmt.Sprintf(format, args...),
	}
	if l.component != "" {
		logEntry["component"] = l.component
	}
	msgBytes, _ := json.Marshal(logEntry)
	l.root().logger.Print(string(msgBytes))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, format, args...)
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.logf(LogLevelTrace, format, args...)
}

// Component returns a component logger backed by whichever logger is the
// default at the time of each call.
func Component(name string) *Logger {
	return &Logger{component: name, deferred: true}
}

func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

func Trace(format string, args ...interface{}) {
	Default().Trace(format, args...)
}
