// Package ops provides structured logging for the dataflow core, decoupled
// from any particular sink so the same call sites work whether the host
// writes to stderr or ships events into an operational log store.
package ops

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Logger publishes log events tied to a request, session, or job.
type Logger interface {
	// Log writes an event with the given fields. Implementations may drop
	// the event based on level without returning an error.
	Log(level log.Level, fields log.Fields, message string) error
	// LogForwarded writes an event whose fields arrived as raw JSON, e.g.
	// forwarded from a worker goroutine's log stream, avoiding a
	// deserialize/reserialize round trip for the common case.
	LogForwarded(ts time.Time, level log.Level, fields map[string]json.RawMessage, message string) error
	// Level returns the currently configured verbosity filter.
	Level() log.Level
}

// WithFields wraps delegate, adding fields to every event it logs.
func WithFields(delegate Logger, add log.Fields) Logger {
	var addJSON = make(map[string]json.RawMessage, len(add))
	for k, v := range add {
		encoded, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("encoding log field %s: %v", k, err))
		}
		addJSON[k] = encoded
	}
	return &withFieldsLogger{delegate: delegate, add: add, addJSON: addJSON}
}

type withFieldsLogger struct {
	delegate Logger
	add      log.Fields
	addJSON  map[string]json.RawMessage
}

func (l *withFieldsLogger) Level() log.Level { return l.delegate.Level() }

func (l *withFieldsLogger) Log(level log.Level, fields log.Fields, message string) error {
	var final = l.add
	if l.needsCopy(level, len(fields)) {
		final = make(log.Fields, len(l.add)+len(fields))
		for k, v := range l.add {
			final[k] = v
		}
		for k, v := range fields {
			final[k] = v
		}
	}
	return l.delegate.Log(level, final, message)
}

func (l *withFieldsLogger) LogForwarded(ts time.Time, level log.Level, fields map[string]json.RawMessage, message string) error {
	var final = l.addJSON
	if l.needsCopy(level, len(fields)) {
		final = make(map[string]json.RawMessage, len(l.addJSON)+len(fields))
		for k, v := range l.addJSON {
			final[k] = v
		}
		for k, v := range fields {
			final[k] = v
		}
	}
	return l.delegate.LogForwarded(ts, level, final, message)
}

// needsCopy avoids copying the base field map when there's nothing to merge
// in, or when the event will be filtered by level regardless.
func (l *withFieldsLogger) needsCopy(level log.Level, givenLen int) bool {
	return givenLen > 0 && level <= l.delegate.Level()
}

type stdLogger struct{}

func (stdLogger) Level() log.Level { return log.GetLevel() }

func (l stdLogger) Log(level log.Level, fields log.Fields, message string) error {
	if level > l.Level() {
		return nil
	}
	log.WithFields(fields).Log(level, message)
	return nil
}

func (l stdLogger) LogForwarded(ts time.Time, level log.Level, fields map[string]json.RawMessage, message string) error {
	var entry = log.NewEntry(log.StandardLogger())
	entry.Time = ts
	entry.Data = make(log.Fields, len(fields))
	for k, raw := range fields {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			entry.Data[k] = v
		}
	}
	entry.Log(level, message)
	return nil
}

// Std returns a Logger backed directly by the standard logrus logger.
// reqcontext.New and service.NewBridge decorate it with their own fields.
func Std() Logger { return stdLogger{} }
