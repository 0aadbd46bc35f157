// Package metrics provides Prometheus instrumentation for pageflow components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Paged pipelines (pages produced, consumed, failed, queue depth, busy slots)
//   - Backpressure (how often the scheduler parked on a full set of slots)
//   - Cron scheduling (scheduled, executed, completed, failed runs)
//   - Sources (rows read, round trips, query latency)
//   - Page writers (pages written, bytes, flushes)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Pipeline with metrics
//	p, err := pipeline.NewWithMetrics[Row](producer, consumer, "populate")
//
//	// Cron scheduler with metrics
//	s := scheduler.NewWithMetrics("nightly", logger)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	p, err := pipeline.NewWithConfigAndMetrics(cfg, "populate", config)
//
// # Available Metrics
//
// ## Pipeline Metrics
//
//   - pageflow_pipeline_runs_total: Total number of pipeline runs by result
//   - pageflow_pipeline_run_duration_seconds: Wall time of a pipeline run
//   - pageflow_pipeline_pages_produced_total: Non-empty pages produced
//   - pageflow_pipeline_pages_discarded_total: Empty or failed pages dropped
//   - pageflow_pipeline_pages_completed_total: Pages consumed successfully
//   - pageflow_pipeline_pages_failed_total: Pages whose consumer failed
//   - pageflow_pipeline_items_produced_total: Items placed on pages
//   - pageflow_pipeline_page_duration_seconds: Consumer time per page
//   - pageflow_pipeline_queue_depth: Produced pages waiting for a slot
//   - pageflow_pipeline_busy_slots: Worker slots consuming a page
//   - pageflow_pipeline_max_pages: Configured queue capacity
//   - pageflow_pipeline_max_threads: Configured number of worker slots
//   - pageflow_pipeline_backpressure_waits_total: Scheduler parks on the gate
//
// ## Task Scheduling Metrics
//
//   - pageflow_scheduler_tasks_scheduled_total: Total number of tasks scheduled
//   - pageflow_scheduler_tasks_executed_total: Total number of tasks executed
//   - pageflow_scheduler_tasks_completed_total: Tasks completed successfully
//   - pageflow_scheduler_tasks_failed_total: Tasks that failed
//   - pageflow_scheduler_task_duration_seconds: Time spent executing tasks
//
// ## Source and Writer Metrics
//
//   - pageflow_source_rows_total, pageflow_source_queries_total
//   - pageflow_source_errors_total, pageflow_source_query_duration_seconds
//   - pageflow_writer_pages_written_total, pageflow_writer_flushes_total
//   - pageflow_writer_bytes_written_total, pageflow_writer_errors_total
//
// ## Rate Limit Metrics
//
//   - pageflow_ratelimit_waits_total, pageflow_ratelimit_wait_duration_seconds
//   - pageflow_ratelimit_denied_total
//
// # Labels
//
// Every metric carries the name of the component instance that produced it:
// pipeline_name, scheduler_name, source_name, writer_name or limiter_name. Run counters
// add result, which is "ok" or "error".
//
// Config.Labels adds constant labels to every collector of the resolved
// Registry. Components sharing one Prometheus registry must agree on the
// label names, since a metric cannot be registered with two label sets.
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	mp.DisableMetrics()            // Stop collecting metrics
//	mp.EnableMetrics(config)       // Re-enable with new config
//	enabled := mp.MetricsEnabled() // Check current state
package metrics
