// Package reqcontext implements the per-request scope of spec §4.4: a
// request context binding a transaction context, job context, scheduler
// handle, result-record channel, cancellation flag, and per-request
// execution statistics, with accepted/submitting/started/finishing
// lifecycle logging.
package reqcontext

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CounterKind classifies a row-level effect counted during execution,
// grounded on `request_statistics.h`'s `counter_kind` enum.
type CounterKind int

const (
	CounterInserted CounterKind = iota
	CounterUpdated
	CounterMerged
	CounterDeleted
	CounterFetched
)

func (k CounterKind) String() string {
	switch k {
	case CounterInserted:
		return "inserted"
	case CounterUpdated:
		return "updated"
	case CounterMerged:
		return "merged"
	case CounterDeleted:
		return "deleted"
	case CounterFetched:
		return "fetched"
	default:
		return "undefined"
	}
}

var requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sqlflow_requests_in_flight",
	Help: "Number of top-level requests currently executing.",
})

var rowEffects = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sqlflow_request_row_effects_total",
	Help: "Row-level effects recorded by completed requests, by kind.",
}, []string{"kind"})

// Stats is a request's optional execution counters, each present only
// once a task has touched it (spec "request_execution_counter ... has
// value" — an optional int64, not a bare zero default).
type Stats struct {
	counters [5]atomic.Int64
	present  [5]atomic.Bool
}

// NewStats builds an empty set of per-request counters.
func NewStats() *Stats { return &Stats{} }

// Count adds delta to kind's counter, exporting it to the process-wide
// row-effects metric and marking the counter as present.
func (s *Stats) Count(kind CounterKind, delta int64) {
	s.counters[kind].Add(delta)
	s.present[kind].Store(true)
	rowEffects.WithLabelValues(kind.String()).Add(float64(delta))
}

// Value returns kind's counter and whether it has ever been touched.
func (s *Stats) Value(kind CounterKind) (int64, bool) {
	if !s.present[kind].Load() {
		return 0, false
	}
	return s.counters[kind].Load(), true
}
