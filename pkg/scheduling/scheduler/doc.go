/*
Package scheduler triggers jobs, typically pipeline runs, on cron schedules.

It is a thin layer over github.com/robfig/cron/v3 that adds job identifiers,
per-job run and failure counters, structured logging through zap and optional
Prometheus metrics. A pipeline does not support overlapping runs, so every
job is wrapped with cron.SkipIfStillRunning: a trigger that fires while the
previous run of the same job is still going is dropped and counted.

Basic Usage:

	s := scheduler.NewWithConfig(scheduler.Config{
		Name:   "nightly",
		Logger: logger,
	})
	defer func() { <-s.Stop() }()

	// Any pipeline is a Job through its Run method.
	if err := s.ScheduleCron("populate", "0 3 * * *", p); err != nil {
		return err
	}

	s.Start()

Schedules:

ScheduleCron accepts the standard five-field format, an optional leading
seconds field, and the descriptors understood by robfig/cron:

	s.ScheduleCron("a", "30 14 * * 1-5", job)   // 2:30 PM on weekdays
	s.ScheduleCron("b", "0/10 * * * * *", job)  // every 10 seconds
	s.ScheduleCron("c", "@every 1m30s", job)    // every 90 seconds
	s.ScheduleEvery("d", 5*time.Minute, job)    // same as "@every 5m0s"

Stopping:

Stop halts triggering and cancels the context passed to running jobs. A
pipeline treats that cancellation as an early production stop and still
drains its in-flight pages, so the channel returned by Stop closes only after
every running job has returned.

Monitoring:

	for _, task := range s.List() {
		fmt.Printf("%s next=%v runs=%d failures=%d\n",
			task.ID, task.Next, task.Runs, task.Failures)
	}

	stats := s.Stats() // Scheduled, Runs, Failures, Skipped
*/
package scheduler
