// Package metrics provides Prometheus instrumentation for pageflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless overridden.
const DefaultNamespace = "pageflow"

// Registry holds all metric instances for pageflow components.
type Registry struct {
	// Pipeline Metrics
	PipelineRuns        *prometheus.CounterVec
	PipelineRunDuration *prometheus.HistogramVec
	PagesProduced       *prometheus.CounterVec
	PagesDiscarded      *prometheus.CounterVec
	PagesCompleted      *prometheus.CounterVec
	PagesFailed         *prometheus.CounterVec
	ItemsProduced       *prometheus.CounterVec
	PageDuration        *prometheus.HistogramVec
	QueueDepth          *prometheus.GaugeVec
	BusySlots           *prometheus.GaugeVec
	MaxPages            *prometheus.GaugeVec
	MaxThreads          *prometheus.GaugeVec
	BackpressureWaits   *prometheus.CounterVec

	// Task Scheduling Metrics
	TasksScheduled        *prometheus.CounterVec
	TasksExecuted         *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec

	// Source Metrics
	SourceRows          *prometheus.CounterVec
	SourceQueries       *prometheus.CounterVec
	SourceErrors        *prometheus.CounterVec
	SourceQueryDuration *prometheus.HistogramVec

	// Writer Metrics
	WriterPages        *prometheus.CounterVec
	WriterFlushes      *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec
	WriterErrors       *prometheus.CounterVec

	// Rate Limit Metrics
	RateLimitWaits        *prometheus.CounterVec
	RateLimitWaitDuration *prometheus.HistogramVec
	RateLimitDenied       *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by pageflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithNamespace(reg, DefaultNamespace)
}

// NewRegistryWithNamespace is like NewRegistry but prefixes metric names
// with namespace instead of DefaultNamespace.
func NewRegistryWithNamespace(reg prometheus.Registerer, namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := factory{promauto.With(reg), namespace}

	return &Registry{
		// Pipeline Metrics
		PipelineRuns: f.counter("pipeline", "runs_total",
			"Total number of pipeline runs by result", "pipeline_name", "result"),
		PipelineRunDuration: f.histogram("pipeline", "run_duration_seconds",
			"Wall time of a pipeline run from first production to final drain", "pipeline_name"),
		PagesProduced: f.counter("pipeline", "pages_produced_total",
			"Total number of pages produced and queued", "pipeline_name"),
		PagesDiscarded: f.counter("pipeline", "pages_discarded_total",
			"Total number of pages dropped because their producer call failed or ended the stream empty", "pipeline_name"),
		PagesCompleted: f.counter("pipeline", "pages_completed_total",
			"Total number of pages consumed successfully", "pipeline_name"),
		PagesFailed: f.counter("pipeline", "pages_failed_total",
			"Total number of pages whose consumer failed", "pipeline_name"),
		ItemsProduced: f.counter("pipeline", "items_produced_total",
			"Total number of items placed on pages", "pipeline_name"),
		PageDuration: f.histogram("pipeline", "page_duration_seconds",
			"Time a worker slot spent consuming one page", "pipeline_name"),
		QueueDepth: f.gauge("pipeline", "queue_depth",
			"Number of produced pages waiting for a worker slot", "pipeline_name"),
		BusySlots: f.gauge("pipeline", "busy_slots",
			"Number of worker slots consuming a page", "pipeline_name"),
		MaxPages: f.gauge("pipeline", "max_pages",
			"Configured page queue capacity", "pipeline_name"),
		MaxThreads: f.gauge("pipeline", "max_threads",
			"Configured number of worker slots", "pipeline_name"),
		BackpressureWaits: f.counter("pipeline", "backpressure_waits_total",
			"Total number of times the scheduler parked waiting for a free worker slot", "pipeline_name"),

		// Task Scheduling Metrics
		TasksScheduled: f.counter("scheduler", "tasks_scheduled_total",
			"Total number of tasks scheduled", "scheduler_name"),
		TasksExecuted: f.counter("scheduler", "tasks_executed_total",
			"Total number of tasks executed", "scheduler_name"),
		TasksCompleted: f.counter("scheduler", "tasks_completed_total",
			"Total number of tasks completed successfully", "scheduler_name"),
		TasksFailed: f.counter("scheduler", "tasks_failed_total",
			"Total number of tasks that failed", "scheduler_name"),
		TaskExecutionDuration: f.histogram("scheduler", "task_duration_seconds",
			"Time spent executing tasks", "scheduler_name"),

		// Source Metrics
		SourceRows: f.counter("source", "rows_total",
			"Total number of rows or keys read by a source", "source_name"),
		SourceQueries: f.counter("source", "queries_total",
			"Total number of round trips issued by a source", "source_name"),
		SourceErrors: f.counter("source", "errors_total",
			"Total number of source read errors", "source_name"),
		SourceQueryDuration: f.histogram("source", "query_duration_seconds",
			"Time spent in a single source round trip", "source_name"),

		// Writer Metrics
		WriterPages: f.counter("writer", "pages_written_total",
			"Total number of pages written", "writer_name"),
		WriterFlushes: f.counter("writer", "flushes_total",
			"Total number of writer flushes", "writer_name"),
		WriterBytesWritten: f.counter("writer", "bytes_written_total",
			"Total bytes written", "writer_name"),
		WriterErrors: f.counter("writer", "errors_total",
			"Total number of failed writes", "writer_name"),

		// Rate Limit Metrics
		RateLimitWaits: f.counter("ratelimit", "waits_total",
			"Total number of calls that had to wait for a token", "limiter_name"),
		RateLimitWaitDuration: f.histogram("ratelimit", "wait_duration_seconds",
			"Time spent waiting for a token", "limiter_name"),
		RateLimitDenied: f.counter("ratelimit", "denied_total",
			"Total number of requests refused without waiting", "limiter_name"),
	}
}

type factory struct {
	promauto.Factory
	namespace string
}

func (f factory) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: f.namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (f factory) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: f.namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (f factory) histogram(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: f.namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		},
		labels,
	)
}
