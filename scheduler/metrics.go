package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueDepth and stealCount mirror the style of go/flow/mapping.go's
// createdPartitionsCounters: package-level promauto collectors registered
// once at import time. queueDepth is labeled by scheduler kind and worker
// index; stealCount, which only the stealing policy updates, by worker
// index alone.
var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sqlflow_scheduler_queue_depth",
		Help: "Number of tasks currently queued on a scheduler worker.",
	}, []string{"kind", "worker"})

	stealCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlflow_scheduler_steals_total",
		Help: "Number of tasks a stealing-scheduler worker has taken from another worker's queue.",
	}, []string{"worker"})

	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlflow_scheduler_tasks_completed_total",
		Help: "Number of tasks a scheduler worker has finished running, by terminal result.",
	}, []string{"kind", "result"})
)
