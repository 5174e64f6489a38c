package ops

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

// sourceField names the field added to every forwarded event identifying
// the worker or subsystem the event originated from.
const sourceField = "source"

// ForwardLogs reads newline-delimited log lines from source and republishes
// them through publisher. Each line is first tried as a JSON-encoded
// structured event; on parse failure the raw line becomes the message of an
// event logged at fallbackLevel. source is closed when the stream ends.
//
// Within this module nothing calls ForwardLogs; the DAG controller and the
// schedulers do not route their logs through it.
func ForwardLogs(label string, fallbackLevel log.Level, source io.ReadCloser, publisher Logger) {
	defer source.Close()
	var reader = bufio.NewReader(source)
	var labelJSON, err = json.Marshal(label)
	if err != nil {
		panic(fmt.Sprintf("encoding forward label: %v", err))
	}
	var parsed, raw int
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil {
			if readErr != io.EOF {
				publisher.Log(log.ErrorLevel, log.Fields{"error": readErr, sourceField: label}, "failed reading forwarded log source")
			}
			break
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		if len(line) == 0 {
			continue
		}

		var event logLine
		if err := json.Unmarshal(line, &event); err == nil {
			parsed++
			event.Fields[sourceField] = json.RawMessage(labelJSON)
			if event.Timestamp.IsZero() {
				event.Timestamp = time.Now().UTC()
			}
			var level = fallbackLevel
			if !event.Level.isZero() {
				level = log.Level(event.Level)
			}
			publisher.LogForwarded(event.Timestamp, level, event.Fields, event.Message)
		} else {
			raw++
			publisher.LogForwarded(time.Now().UTC(), fallbackLevel,
				map[string]json.RawMessage{sourceField: json.RawMessage(labelJSON)}, string(line))
		}
	}
	publisher.Log(log.TraceLevel, log.Fields{"parsedLines": parsed, "rawLines": raw, sourceField: label}, "finished forwarding logs")
}

var errInvalidLevel = errors.New("invalid log level")

type jsonLevel log.Level

func (l jsonLevel) isZero() bool { return l == 0 }

func (l *jsonLevel) UnmarshalJSON(b []byte) error {
	if len(b) < 5 {
		return errInvalidLevel
	}
	b = b[1 : len(b)-1] // strip quotes
	for _, candidate := range []struct {
		prefix string
		level  log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"trace", log.TraceLevel},
		{"warn", log.WarnLevel},
		{"err", log.ErrorLevel},
		{"fatal", log.ErrorLevel},
		{"panic", log.ErrorLevel},
	} {
		if len(b) >= len(candidate.prefix) && equalFoldASCII(candidate.prefix, b[:len(candidate.prefix)]) {
			*l = jsonLevel(candidate.level)
			return nil
		}
	}
	return errInvalidLevel
}

func equalFoldASCII(a string, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] && (a[i]^32) != b[i] {
			return false
		}
	}
	return true
}

type logLine struct {
	Level     jsonLevel
	Timestamp time.Time
	Fields    map[string]json.RawMessage
	Message   string
}

func (e *logLine) UnmarshalJSON(b []byte) error {
	*e = logLine{}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range m {
		switch {
		case matches(k, "timestamp", "time", "ts") && e.Timestamp.IsZero():
			var t time.Time
			if json.Unmarshal(v, &t) == nil {
				e.Timestamp = t
				delete(m, k)
			}
		case matches(k, "level", "lvl") && e.Level.isZero():
			if json.Unmarshal(v, &e.Level) == nil {
				delete(m, k)
			}
		case matches(k, "message", "msg") && e.Message == "":
			var s string
			if json.Unmarshal(v, &s) == nil {
				e.Message = s
				delete(m, k)
			}
		}
	}
	e.Fields = m
	return nil
}

func matches(field string, allowed ...string) bool {
	for _, c := range allowed {
		if equalFoldASCII(c, []byte(field)) {
			return true
		}
	}
	return false
}
