package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	pfcontext "github.com/vnykmshr/pageflow/pkg/common/context"
	"github.com/vnykmshr/pageflow/pkg/scheduling/scheduler"
)

const shutdownTimeout = 5 * time.Second

// run executes job once, or on the configured cron schedule until ctx is
// done. The metrics endpoint, when configured, is served for as long as
// the job side runs.
func (a *app) run(parent context.Context, name string, job scheduler.Job) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		a.logger.Info("serving metrics",
			zap.String("addr", ln.Addr().String()),
			zap.String("path", a.cfg.Metrics.Path))
		g.Go(func() error {
			return serveMetrics(gctx, ln, a.cfg.Metrics.Path, a.registry)
		})
	}

	g.Go(func() error {
		defer cancel()
		if a.cfg.Schedule.Cron == "" {
			return job.Run(gctx)
		}
		return a.schedule(gctx, name, job)
	})

	err := g.Wait()
	if err != nil && pfcontext.IsCanceled(parent) {
		a.logger.Warn("interrupted",
			zap.String("job", name),
			zap.Bool("deadline", pfcontext.IsTimedOut(parent)),
			zap.Error(err))
	}
	return err
}

// serveMetrics serves reg on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, path string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// schedule triggers job on the configured cron expression until ctx is
// done, then waits for a running pass to return.
func (a *app) schedule(ctx context.Context, name string, job scheduler.Job) error {
	s := scheduler.NewWithConfig(scheduler.Config{
		Name:    name,
		Logger:  a.logger,
		Metrics: a.metrics,
		OnRunComplete: func(id string, err error, d time.Duration) {
			if err == nil {
				a.logger.Info("scheduled pass finished", zap.String("job", id), zap.Duration("elapsed", d))
			}
		},
	})

	if err := s.ScheduleCron(name, a.cfg.Schedule.Cron, job); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	for _, task := range s.List() {
		a.logger.Info("scheduled",
			zap.String("job", task.ID),
			zap.String("cron", task.Spec),
			zap.Time("next", task.Next))
	}

	<-ctx.Done()
	<-s.Stop()

	stats := s.Stats()
	a.logger.Info("scheduler stopped",
		zap.Int64("runs", stats.Runs),
		zap.Int64("failures", stats.Failures),
		zap.Int64("skipped", stats.Skipped))
	return nil
}
