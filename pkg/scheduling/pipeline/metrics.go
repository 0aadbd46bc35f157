package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/pageflow/pkg/metrics"
)

// MetricsPipeline wraps a Pipeline with Prometheus metrics collection.
type MetricsPipeline[T any] struct {
	pipeline Pipeline[T]
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var (
	_ Pipeline[int]          = (*MetricsPipeline[int])(nil)
	_ metrics.Instrumentable = (*MetricsPipeline[int])(nil)
)

// NewWithMetrics creates a pipeline with metrics enabled on a private registry.
func NewWithMetrics[T any](producer Producer[T], consumer Consumer[T], name string) (*MetricsPipeline[T], error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	config := metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	}

	return NewWithConfigAndMetrics(Config[T]{
		Name:     name,
		Producer: producer,
		Consumer: consumer,
	}, name, config)
}

// NewWithConfigAndMetrics creates a pipeline with custom config and metrics.
func NewWithConfigAndMetrics[T any](config Config[T], name string, metricsConfig metrics.Config) (*MetricsPipeline[T], error) {
	if config.Name == "" {
		config.Name = name
	}

	mp := &MetricsPipeline[T]{name: name}
	mp.registry.Store(metricsConfig.Resolve())
	mp.enabled.Store(metricsConfig.Enabled)

	base, err := NewWithConfig(mp.instrument(config))
	if err != nil {
		return nil, err
	}
	mp.pipeline = base
	mp.updateMetrics()
	return mp, nil
}

// instrument chains metric recording in front of the caller's hooks.
func (mp *MetricsPipeline[T]) instrument(config Config[T]) Config[T] {
	observer := config.Observer
	config.Observer = func(s State) {
		if mp.enabled.Load() {
			reg := mp.registry.Load()
			reg.QueueDepth.WithLabelValues(mp.name).Set(float64(s.QueueLen))
			reg.BusySlots.WithLabelValues(mp.name).Set(float64(s.BusySlots))
		}
		if observer != nil {
			observer(s)
		}
	}

	onComplete := config.OnPageComplete
	config.OnPageComplete = func(slot int, seq uint64, err error, d time.Duration) {
		if mp.enabled.Load() {
			reg := mp.registry.Load()
			reg.PageDuration.WithLabelValues(mp.name).Observe(d.Seconds())
			if err != nil {
				reg.PagesFailed.WithLabelValues(mp.name).Inc()
			} else {
				reg.PagesCompleted.WithLabelValues(mp.name).Inc()
			}
		}
		if onComplete != nil {
			onComplete(slot, seq, err, d)
		}
	}
	return config
}

// updateMetrics updates the configuration gauges.
func (mp *MetricsPipeline[T]) updateMetrics() {
	if !mp.enabled.Load() {
		return
	}

	reg := mp.registry.Load()
	reg.MaxPages.WithLabelValues(mp.name).Set(float64(mp.pipeline.MaxPages()))
	reg.MaxThreads.WithLabelValues(mp.name).Set(float64(mp.pipeline.MaxThreads()))
}

// Run executes one pass and records run-level metrics.
func (mp *MetricsPipeline[T]) Run(ctx context.Context) error {
	before := mp.pipeline.Stats()
	start := time.Now()

	err := mp.pipeline.Run(ctx)

	if mp.enabled.Load() {
		after := mp.pipeline.Stats()
		if after.Runs == before.Runs {
			// rejected before starting, e.g. overlapping run
			return err
		}

		reg := mp.registry.Load()
		result := "ok"
		if err != nil {
			result = "error"
		}
		reg.PipelineRuns.WithLabelValues(mp.name, result).Inc()
		reg.PipelineRunDuration.WithLabelValues(mp.name).Observe(time.Since(start).Seconds())
		reg.PagesProduced.WithLabelValues(mp.name).Add(float64(after.PagesProduced - before.PagesProduced))
		reg.PagesDiscarded.WithLabelValues(mp.name).Add(float64(after.PagesDiscarded - before.PagesDiscarded))
		reg.ItemsProduced.WithLabelValues(mp.name).Add(float64(after.ItemsProduced - before.ItemsProduced))
		reg.BackpressureWaits.WithLabelValues(mp.name).Add(float64(after.BackpressureWaits - before.BackpressureWaits))
	}
	return err
}

// Reconfigure replaces the configuration, keeping instrumentation.
func (mp *MetricsPipeline[T]) Reconfigure(config Config[T]) error {
	if config.Name == "" {
		config.Name = mp.name
	}
	err := mp.pipeline.Reconfigure(mp.instrument(config))
	mp.updateMetrics()
	return err
}

// SetMaxPages changes the queue capacity between runs.
func (mp *MetricsPipeline[T]) SetMaxPages(n int) error {
	err := mp.pipeline.SetMaxPages(n)
	mp.updateMetrics()
	return err
}

// SetMaxThreads changes the number of worker slots between runs.
func (mp *MetricsPipeline[T]) SetMaxThreads(n int) error {
	err := mp.pipeline.SetMaxThreads(n)
	mp.updateMetrics()
	return err
}

// SetProducer replaces the producer between runs.
func (mp *MetricsPipeline[T]) SetProducer(producer Producer[T]) error {
	return mp.pipeline.SetProducer(producer)
}

// SetConsumer replaces the consumer between runs.
func (mp *MetricsPipeline[T]) SetConsumer(consumer Consumer[T]) error {
	return mp.pipeline.SetConsumer(consumer)
}

// MaxPages returns the queue capacity.
func (mp *MetricsPipeline[T]) MaxPages() int {
	return mp.pipeline.MaxPages()
}

// MaxThreads returns the number of worker slots.
func (mp *MetricsPipeline[T]) MaxThreads() int {
	return mp.pipeline.MaxThreads()
}

// Running reports whether a run is in progress.
func (mp *MetricsPipeline[T]) Running() bool {
	return mp.pipeline.Running()
}

// Stats returns cumulative statistics.
func (mp *MetricsPipeline[T]) Stats() Stats {
	return mp.pipeline.Stats()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPipeline[T]) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		mp.registry.Store(config.Resolve())
	}
	mp.enabled.Store(config.Enabled)
	mp.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPipeline[T]) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPipeline[T]) MetricsEnabled() bool {
	return mp.enabled.Load()
}

// Registry returns the metric instances the pipeline records into.
func (mp *MetricsPipeline[T]) Registry() *metrics.Registry {
	return mp.registry.Load()
}
