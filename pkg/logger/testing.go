package logger

import (
	"fmt"
	"sync"
	"testing"
)

// Entry is a single message captured by TestLogger
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

type entryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// TestLogger forwards messages to t.Logf and keeps them for assertions
type TestLogger struct {
	T      *testing.T
	fields map[string]interface{}
	log    *entryLog
}

// NewTestLogger creates a new test logger
func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{T: t, log: &entryLog{}}
}

func (l *TestLogger) record(level, msg string) {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	l.log.mu.Lock()
	l.log.entries = append(l.log.entries, Entry{Level: level, Message: msg, Fields: fields})
	l.log.mu.Unlock()
	if l.T != nil {
		l.T.Logf("[%s] %s %v", level, msg, fields)
	}
}

func (l *TestLogger) Debug(msg string) { l.record("debug", msg) }
func (l *TestLogger) Info(msg string)  { l.record("info", msg) }
func (l *TestLogger) Warn(msg string)  { l.record("warn", msg) }
func (l *TestLogger) Error(msg string) { l.record("error", msg) }
func (l *TestLogger) Fatal(msg string) { l.record("fatal", msg) }

// WithField returns a child logger sharing the same entry log
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger sharing the same entry log
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{T: l.T, fields: merged, log: l.log}
}

// Entries returns a copy of everything logged so far
func (l *TestLogger) Entries() []Entry {
	l.log.mu.Lock()
	defer l.log.mu.Unlock()
	out := make([]Entry, len(l.log.entries))
	copy(out, l.log.entries)
	return out
}

// Count returns how many entries were logged at level
func (l *TestLogger) Count(level string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// String renders the log, handy in assertion messages
func (l *TestLogger) String() string {
	out := ""
	for _, e := range l.Entries() {
		out += fmt.Sprintf("[%s] %s %v\n", e.Level, e.Message, e.Fields)
	}
	return out
}
