// Package opstest provides an in-memory ops.Logger for assertions in tests
// across the module, mirroring the teacher's TestLogPublisher.
package opstest

import (
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/estuary/sqlflow/ops"
)

// Event is a single recorded log call.
type Event struct {
	Timestamp time.Time
	Level     log.Level
	Message   string
	Fields    map[string]interface{}
}

// Logger collects every event logged to it, guarded by a mutex so it's safe
// to share across scheduler workers in tests.
type Logger struct {
	mu     sync.Mutex
	events []Event
	level  log.Level
}

var _ ops.Logger = (*Logger)(nil)

// New returns a Logger that records events at level or more severe.
func New(level log.Level) *Logger {
	return &Logger{level: level}
}

func (l *Logger) Level() log.Level { return l.level }

func (l *Logger) Log(level log.Level, fields log.Fields, message string) error {
	if level > l.level {
		return nil
	}
	var normalized = normalize(fields)
	l.mu.Lock()
	l.events = append(l.events, Event{Timestamp: time.Now().UTC(), Level: level, Message: message, Fields: normalized})
	l.mu.Unlock()
	return nil
}

func (l *Logger) LogForwarded(ts time.Time, level log.Level, fields map[string]json.RawMessage, message string) error {
	if level > l.level {
		return nil
	}
	var decoded = make(map[string]interface{}, len(fields))
	for k, raw := range fields {
		var v interface{}
		if json.Unmarshal(raw, &v) == nil {
			decoded[k] = v
		}
	}
	l.mu.Lock()
	l.events = append(l.events, Event{Timestamp: ts, Level: level, Message: message, Fields: decoded})
	l.mu.Unlock()
	return nil
}

// Events returns a snapshot of every event recorded so far.
func (l *Logger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out = make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func normalize(fields interface{}) map[string]interface{} {
	encoded, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	var m = make(map[string]interface{})
	if err := json.Unmarshal(encoded, &m); err != nil {
		panic(err)
	}
	return m
}
