// Package obs provides the leveled, field-structured logger used by the
// CLI and query service for anything beyond direct report output.
package obs

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled logger with attachable fields.
type Logger struct {
	level      Level
	output     io.Writer
	fields     map[string]interface{}
	timeFormat string
}

// New creates a logger writing to output at the given minimum level.
func New(level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{level: level, output: output, fields: make(map[string]interface{}), timeFormat: time.RFC3339}
}

// NewDefault creates a logger at INFO level writing to stderr, so CLI
// report lines on stdout stay uncluttered.
func NewDefault() *Logger {
	return New(INFO, os.Stderr)
}

// WithFields returns a derived logger carrying the given fields in
// addition to any already attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged, timeFormat: l.timeFormat}
}

// WithField returns a derived logger carrying one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel changes the minimum level that reaches output.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...map[string]interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...map[string]interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...map[string]interface{}) { l.log(ERROR, msg, fields...) }

// Fatal logs at FATAL and terminates the process.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.log(FATAL, msg, fields...)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, extraFields ...map[string]interface{}) {
	if level < l.level {
		return
	}

	all := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for _, fields := range extraFields {
		for k, v := range fields {
			all[k] = v
		}
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		all["caller"] = fmt.Sprintf("%s:%d", file, line)
	}

	entry := fmt.Sprintf("[%s] %s: %s", time.Now().Format(l.timeFormat), level, msg)
	if len(all) > 0 {
		entry += " |"
		for k, v := range all {
			entry += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	entry += "\n"
	l.output.Write([]byte(entry))
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

// LogOperation logs the start, completion, and duration of fn.
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Info(fmt.Sprintf("starting %s", operation))

	err := fn()

	duration := time.Since(start)
	if err != nil {
		l.Error(fmt.Sprintf("%s failed", operation), map[string]interface{}{"duration": duration, "error": err.Error()})
	} else {
		l.Info(fmt.Sprintf("%s completed", operation), map[string]interface{}{"duration": duration})
	}
	return err
}

var globalLogger = NewDefault()

// SetGlobalLogger replaces the package-level default logger.
func SetGlobalLogger(logger *Logger) { globalLogger = logger }

// GetGlobalLogger returns the package-level default logger.
func GetGlobalLogger() *Logger { return globalLogger }

func Debug(msg string, fields ...map[string]interface{}) { globalLogger.Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { globalLogger.Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { globalLogger.Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { globalLogger.Error(msg, fields...) }
func Fatal(msg string, fields ...map[string]interface{}) { globalLogger.Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { globalLogger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { globalLogger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { globalLogger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { globalLogger.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { globalLogger.Fatalf(format, args...) }

// ParseLevel parses a level name, defaulting to INFO on an unknown value.
func ParseLevel(level string) Level {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	case "FATAL", "fatal":
		return FATAL
	default:
		log.Printf("unknown log level %q, defaulting to INFO", level)
		return INFO
	}
}

// AccessLogger logs HTTP access lines for the query service.
type AccessLogger struct {
	logger *Logger
}

// NewAccessLogger wraps logger for access-line use.
func NewAccessLogger(logger *Logger) *AccessLogger { return &AccessLogger{logger: logger} }

// LogAccess logs one request's method, path, status, and duration.
func (al *AccessLogger) LogAccess(method, path, status string, duration time.Duration, fields map[string]interface{}) {
	all := map[string]interface{}{"method": method, "path": path, "status": status, "duration": duration}
	for k, v := range fields {
		all[k] = v
	}
	al.logger.Info("access", all)
}
