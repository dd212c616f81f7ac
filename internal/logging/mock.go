package logging

import (
	"fmt"
	"sync"
)

// MockLogger records log entries for assertions in tests.
// Loggers derived through WithError/WithField/WithFields share the parent's
// record, so entries written by any derived logger are visible on the root.
// It is safe for concurrent use.
type MockLogger struct {
	Entries []LogEntry

	mu            sync.Mutex
	root          *MockLogger
	pendingError  error
	pendingFields []Field
}

// LogEntry is one captured call.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

// NewMockLogger returns an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) store() *MockLogger {
	if m.root != nil {
		return m.root
	}
	return m
}

func (m *MockLogger) lock() func() {
	s := m.store()
	s.mu.Lock()
	return s.mu.Unlock
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	all := make([]Field, 0, len(m.pendingFields)+len(fields))
	all = append(all, m.pendingFields...)
	all = append(all, fields...)

	defer m.lock()()
	s := m.store()
	s.Entries = append(s.Entries, LogEntry{Level: level, Message: msg, Fields: all, Error: m.pendingError})
}

func (m *MockLogger) derive(err error, fields []Field) *MockLogger {
	all := make([]Field, 0, len(m.pendingFields)+len(fields))
	all = append(all, m.pendingFields...)
	all = append(all, fields...)
	return &MockLogger{root: m.store(), pendingError: err, pendingFields: all}
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

// Fatal records a FATAL entry without exiting.
func (m *MockLogger) Fatal(msg string, fields ...Field) { m.record("FATAL", msg, fields) }

// Fatalf records a FATAL entry without exiting.
func (m *MockLogger) Fatalf(msg string, args ...interface{}) {
	m.record("FATAL", fmt.Sprintf(msg, args...), nil)
}

func (m *MockLogger) WithError(err error) Logger {
	return m.derive(err, nil)
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.derive(m.pendingError, []Field{{Key: key, Value: value}})
}

func (m *MockLogger) WithFields(fields ...Field) Logger {
	return m.derive(m.pendingError, fields)
}

// GetEntries returns a snapshot of every captured entry.
func (m *MockLogger) GetEntries() []LogEntry {
	defer m.lock()()
	return append([]LogEntry(nil), m.store().Entries...)
}

// GetEntriesByLevel returns the captured entries with the given level.
func (m *MockLogger) GetEntriesByLevel(level string) []LogEntry {
	var entries []LogEntry
	for _, entry := range m.GetEntries() {
		if entry.Level == level {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Clear drops all captured entries.
func (m *MockLogger) Clear() {
	defer m.lock()()
	m.store().Entries = nil
}

// HasEntry reports whether an entry with level and message was captured.
func (m *MockLogger) HasEntry(level, message string) bool {
	for _, entry := range m.GetEntries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// FieldValue returns the value of key on the first entry with message.
func (m *MockLogger) FieldValue(message, key string) (interface{}, bool) {
	for _, entry := range m.GetEntries() {
		if entry.Message != message {
			continue
		}
		for _, f := range entry.Fields {
			if f.Key == key {
				return f.Value, true
			}
		}
	}
	return nil, false
}
