package scheduler_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/pageflow/pkg/scheduling/scheduler"
)

// Example demonstrates scheduling and listing jobs.
func Example() {
	s := scheduler.New()
	defer func() { <-s.Stop() }()

	job := scheduler.JobFunc(func(ctx context.Context) error {
		return nil
	})

	if err := s.ScheduleCron("nightly", "0 3 * * *", job); err != nil {
		fmt.Println(err)
		return
	}
	if err := s.ScheduleCron("report", "@weekly", job); err != nil {
		fmt.Println(err)
		return
	}

	err := s.ScheduleCron("broken", "61 * * * *", job)
	fmt.Println(err != nil)

	for _, task := range s.List() {
		fmt.Println(task.ID, task.Spec)
	}

	// Output:
	// true
	// nightly 0 3 * * *
	// report @weekly
}
