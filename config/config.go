// Package config defines the top-level configuration of a sqlflow host
// process, parsed from flags/env/ini via github.com/jessevdk/go-flags the
// way the teacher's cmd/flow-ingester and cmd/flow-consumer entrypoints
// do (grounded on `go/flow-ingester/main.go`'s `Config` struct and its
// `group`/`namespace`/`env-namespace` tagging convention).
package config

import "github.com/estuary/sqlflow/storage"

// SchedulerKind chooses which scheduler.Kind the host runs.
type SchedulerKind string

const (
	SchedulerSerial   SchedulerKind = "serial"
	SchedulerStealing SchedulerKind = "stealing"
)

// Config is the top-level configuration object of a sqlflow host,
// grounded on `original_source/src/jogasaki/configuration.h`'s knobs
// (thread pool size, default partitions, core affinity) plus the
// concurrent_operation remap knobs of spec §9.
type Config struct {
	Scheduler struct {
		Kind                         SchedulerKind `long:"kind" env:"KIND" default:"stealing" choice:"serial" choice:"stealing" description:"Task scheduler policy"`
		WorkerCount                  int           `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of stealing-policy worker threads"`
		TeardownTryOnSuspendedWorker bool          `long:"teardown-try-on-suspended-worker" env:"TEARDOWN_TRY_ON_SUSPENDED_WORKER" description:"Steer job teardown onto a suspended worker instead of a busy one"`
	} `group:"scheduler" namespace:"scheduler" env-namespace:"SCHEDULER"`

	Storage struct {
		PointReadConcurrentOperationAsNotFound bool `long:"point-read-concurrent-operation-as-not-found" env:"POINT_READ_CONCURRENT_OPERATION_AS_NOT_FOUND" description:"Remap a point read's concurrent_operation to not_found instead of err_serialization_failure"`
		ScanConcurrentOperationAsNotFound       bool `long:"scan-concurrent-operation-as-not-found" env:"SCAN_CONCURRENT_OPERATION_AS_NOT_FOUND" description:"Remap a scan's concurrent_operation to not_found instead of err_serialization_failure"`
		EtcdRoot                                string `long:"etcd-root" env:"ETCD_ROOT" default:"/sqlflow/catalog" description:"Etcd key prefix mirroring table/storage definitions"`
	} `group:"storage" namespace:"storage" env-namespace:"STORAGE"`

	Etcd struct {
		Endpoints []string `long:"endpoint" env:"ENDPOINTS" env-delim:"," default:"localhost:2379" description:"Etcd cluster endpoints"`
	} `group:"etcd" namespace:"etcd" env-namespace:"ETCD"`

	Log struct {
		Level string `long:"level" env:"LEVEL" default:"info" description:"Minimum log level"`
	} `group:"log" namespace:"log" env-namespace:"LOG"`

	Execution struct {
		WriterSeats           int `long:"writer-seats" env:"WRITER_SEATS" default:"64" description:"Size of the fixed result-channel writer seat pool"`
		MemoryBudgetBytes     int64 `long:"memory-budget-bytes" env:"MEMORY_BUDGET_BYTES" default:"268435456" description:"Per-request memory resource budget, in bytes"`
		ResultChannelCapacity int `long:"result-channel-capacity" env:"RESULT_CHANNEL_CAPACITY" default:"1024" description:"Buffered capacity of a request's result record channel"`
	} `group:"execution" namespace:"execution" env-namespace:"EXECUTION"`
}

// RemapPolicy builds the storage.RemapPolicy that storage.Remap takes, from
// the two knobs above. Neither service.Bridge nor cmd/sqlflowd calls it or
// applies storage.Remap to a Store.
func (c *Config) RemapPolicy() storage.RemapPolicy {
	return storage.RemapPolicy{
		PointReadAsNotFound: c.Storage.PointReadConcurrentOperationAsNotFound,
		ScanAsNotFound:      c.Storage.ScanConcurrentOperationAsNotFound,
	}
}

// Default returns a Config populated with the same defaults go-flags
// would apply, for tests and for callers that build a Config without
// going through flag parsing.
func Default() *Config {
	var c = new(Config)
	c.Scheduler.Kind = SchedulerStealing
	c.Scheduler.WorkerCount = 5
	c.Storage.EtcdRoot = "/sqlflow/catalog"
	c.Etcd.Endpoints = []string{"localhost:2379"}
	c.Log.Level = "info"
	c.Execution.WriterSeats = 64
	c.Execution.MemoryBudgetBytes = 268435456
	c.Execution.ResultChannelCapacity = 1024
	return c
}
