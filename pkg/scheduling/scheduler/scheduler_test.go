package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/vnykmshr/pageflow/internal/testutil"
	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
)

func noop() Job {
	return JobFunc(func(context.Context) error { return nil })
}

func TestScheduler_Validation(t *testing.T) {
	s := NewWithConfig(Config{MaxTasks: 2})
	defer func() { <-s.Stop() }()

	tests := []struct {
		name string
		id   string
		spec string
		job  Job
	}{
		{"empty id", "", "@daily", noop()},
		{"empty spec", "a", "", noop()},
		{"bad spec", "a", "not a cron", noop()},
		{"nil job", "a", "@daily", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertError(t, s.ScheduleCron(tt.id, tt.spec, tt.job))
		})
	}

	testutil.AssertErrorIs(t, s.ScheduleCron("", "@daily", noop()), pferrors.ErrInvalidConfiguration)

	testutil.AssertNoError(t, s.ScheduleCron("a", "0 3 * * *", noop()))
	testutil.AssertError(t, s.ScheduleCron("a", "@hourly", noop()))
	testutil.AssertNoError(t, s.ScheduleCron("b", "*/10 * * * * *", noop()))
	testutil.AssertError(t, s.ScheduleCron("c", "@hourly", noop()))

	testutil.AssertError(t, s.ScheduleEvery("d", 10*time.Millisecond, noop()))
	testutil.AssertEqual(t, s.Stats().Scheduled, int64(2))
}

// Both step forms of the seconds field parse and fire on ten-second boundaries.
func TestScheduler_SecondsStep(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	for _, spec := range []string{"*/10 * * * * *", "0/10 * * * * *"} {
		testutil.AssertNoError(t, s.ScheduleCron(spec, spec, noop()))
	}
	testutil.AssertNoError(t, s.Start())

	testutil.AssertEqual(t, len(s.List()), 2)
	testutil.Eventually(t, func() bool {
		for _, task := range s.List() {
			if task.Next.IsZero() {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	for _, task := range s.List() {
		if task.Next.Second()%10 != 0 {
			t.Fatalf("%s: next run at %v, want a multiple of ten seconds", task.Spec, task.Next)
		}
	}
}

func TestScheduler_ListAndCancel(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()
	testutil.AssertNoError(t, s.Start())

	testutil.AssertNoError(t, s.ScheduleCron("yearly", "@yearly", noop()))
	testutil.AssertNoError(t, s.ScheduleCron("hourly", "@hourly", noop()))
	testutil.AssertNoError(t, s.ScheduleEvery("soon", time.Second, noop()))

	var tasks []Task
	testutil.Eventually(t, func() bool {
		tasks = s.List()
		for _, task := range tasks {
			if task.Next.IsZero() {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	testutil.AssertEqual(t, len(tasks), 3)
	testutil.AssertEqual(t, tasks[0].ID, "soon")
	testutil.AssertEqual(t, tasks[2].ID, "yearly")
	testutil.AssertEqual(t, tasks[0].Spec, "@every 1s")

	testutil.AssertEqual(t, s.Cancel("hourly"), true)
	testutil.AssertEqual(t, s.Cancel("hourly"), false)
	testutil.AssertEqual(t, len(s.List()), 2)

	s.CancelAll()
	testutil.AssertEqual(t, len(s.List()), 0)
}

func TestScheduler_RunsJob(t *testing.T) {
	var runs atomic.Int32
	var completions atomic.Int32
	boom := errors.New("boom")

	reg := prometheus.NewRegistry()
	s := NewWithConfig(Config{
		Name:    "test",
		Logger:  zaptest.NewLogger(t),
		Metrics: metrics.Config{Enabled: true, Registry: reg},
		OnRunComplete: func(id string, err error, d time.Duration) {
			completions.Add(1)
		},
	})
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.ScheduleEvery("tick", time.Second, JobFunc(func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return boom
		}
		return nil
	})))
	testutil.AssertNoError(t, s.Start())
	testutil.AssertError(t, s.Start())

	testutil.Eventually(t, func() bool { return completions.Load() >= 2 }, 4*time.Second, 10*time.Millisecond)

	tasks := s.List()
	testutil.AssertEqual(t, len(tasks), 1)
	if tasks[0].Runs < 2 || tasks[0].Failures != 1 {
		t.Fatalf("unexpected task counters: runs=%d failures=%d", tasks[0].Runs, tasks[0].Failures)
	}

	stats := s.Stats()
	testutil.AssertEqual(t, stats.Failures, int64(1))

	families, err := reg.Gather()
	testutil.AssertNoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "pageflow_scheduler_tasks_failed_total" {
			found = true
			testutil.AssertEqual(t, mf.GetMetric()[0].GetCounter().GetValue(), 1.0)
		}
	}
	testutil.AssertEqual(t, found, true)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32

	s := NewWithMetrics("skip", zaptest.NewLogger(t))
	testutil.AssertNoError(t, s.ScheduleEvery("slow", time.Second, JobFunc(func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})))
	testutil.AssertNoError(t, s.Start())

	testutil.Eventually(t, func() bool { return s.Stats().Skipped >= 1 }, 4*time.Second, 10*time.Millisecond)
	testutil.AssertEqual(t, runs.Load(), int32(1))

	close(release)
	<-s.Stop()
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var canceled atomic.Bool

	s := New()
	testutil.AssertNoError(t, s.ScheduleEvery("block", time.Second, JobFunc(func(ctx context.Context) error {
		select {
		case <-started:
		default:
			close(started)
		}
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})))
	testutil.AssertNoError(t, s.Start())

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	select {
	case <-s.Stop():
	case <-time.After(time.Second):
		t.Fatal("stop did not wait for the running job")
	}
	testutil.AssertEqual(t, canceled.Load(), true)

	// stopping twice is harmless
	<-s.Stop()
}

func TestScheduler_PipelineJob(t *testing.T) {
	var consumed atomic.Int32
	calls := 0

	p, err := pipeline.NewWithConfig(pipeline.Config[int]{
		MaxPages:   2,
		MaxThreads: 2,
		Producer: pipeline.ProducerFunc[int](func(ctx context.Context, pg *page.Page[int]) (bool, error) {
			calls++
			pg.Append(calls)
			if calls%3 == 0 {
				return false, nil
			}
			return true, nil
		}),
		Consumer: pipeline.ConsumerFunc[int](func(ctx context.Context, pg *page.Page[int]) error {
			consumed.Add(int32(pg.Len()))
			return nil
		}),
	})
	testutil.AssertNoError(t, err)

	s := New()
	defer func() { <-s.Stop() }()
	testutil.AssertNoError(t, s.ScheduleCron("populate", "@every 1s", p))
	testutil.AssertNoError(t, s.Start())

	testutil.Eventually(t, func() bool { return p.Stats().Runs >= 1 }, 4*time.Second, 10*time.Millisecond)
	testutil.Eventually(t, func() bool { return consumed.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
