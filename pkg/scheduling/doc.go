/*
Package scheduling holds the parts of the page pipeline and the cron
scheduler that reruns it.

  - page: Page and the bounded Queue, dispatched LIFO or FIFO
  - gate: a binary gate with a single waiter and many signalers
  - slotpool: N worker slots, each holding at most one in-flight page
  - pipeline: the scheduler loop tying the three together
  - scheduler: cron-based triggering of recurring jobs

Pipeline:

	p, err := pipeline.NewWithConfig(pipeline.Config[Row]{
		MaxPages:   40,
		MaxThreads: 4,
		Producer:   source,
		Consumer:   sink,
	})
	if err != nil {
		return err
	}
	err = p.Run(ctx)

Run returns once every dispatched page has been consumed. A producer error
stops production immediately; consumer errors surface when their slot is
polled or at the final drain. Either way the earliest error is returned.

Scheduler:

	s := scheduler.New()
	_ = s.ScheduleCron("nightly", "0 2 * * *", scheduler.JobFunc(func(ctx context.Context) error {
		return p.Run(ctx)
	}))
	_ = s.Start()
	defer func() { <-s.Stop() }()
*/
package scheduling
