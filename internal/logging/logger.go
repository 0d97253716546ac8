package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// defaultOutput is where NewLogger writes; commands that reserve stdout redirect it.
var (
	outputMu      sync.RWMutex
	defaultOutput io.Writer = os.Stdout
)

// debugEnabled is shared by every Logger so LOG_LEVEL applies process-wide.
var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"))
}

// SetDebug toggles DEBUG output for all loggers.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetDefaultOutput redirects loggers created afterwards by NewLogger.
func SetDefaultOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	defaultOutput = w
}

// Logger provides key/value logging for a single worker component
type Logger struct {
	prefix string
	fields []interface{}
	logger *log.Logger
}

// NewLogger creates a new logger writing to the default output (stdout) with a component prefix
func NewLogger(prefix string) *Logger {
	outputMu.RLock()
	w := defaultOutput
	outputMu.RUnlock()
	return NewLoggerTo(w, prefix)
}

// NewLoggerTo creates a logger writing to w; tests pass io.Discard or a buffer
func NewLoggerTo(w io.Writer, prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: log.New(w, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
	}
}

// With returns a child logger that prepends the given key/value pairs to every line
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keysAndValues...)
	return &Logger{prefix: l.prefix, fields: fields, logger: l.logger}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs when LOG_LEVEL=debug
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	var b strings.Builder
	writeKV(&b, l.fields)
	writeKV(&b, keysAndValues)
	l.logger.Printf("[%s] %s%s", level, msg, b.String())
}

func writeKV(b *strings.Builder, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(b, " %v=%v", kv[i], kv[i+1])
	}
}
