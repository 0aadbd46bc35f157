// Package cli implements the pageflow command line.
package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vnykmshr/pageflow/internal/config"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
)

// flagKeys maps flag names to configuration keys. Flags missing from a
// command are skipped.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"max-pages":     "pipeline.max_pages",
	"max-threads":   "pipeline.max_threads",
	"page-size":     "pipeline.page_size",
	"fifo":          "pipeline.fifo",
	"stop-on-error": "pipeline.stop_on_error",
	"metrics-addr":  "metrics.addr",
	"cron":          "schedule.cron",
	"db":            "db.path",
	"rows":          "db.rows",
	"slow-delay":    "db.slow_delay",
	"sync-delay":    "db.sync_delay",
	"redis-addr":    "redis.addr",
	"match":         "redis.match",
	"count":         "redis.count",
	"scan-rate":     "redis.scan_rate",
}

// app carries state shared by every command once flags are parsed.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  metrics.Config

	undoGlobals func()
}

// NewRootCommand builds the pageflow command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	var configFile, envFile string

	root := &cobra.Command{
		Use:           "pageflow",
		Short:         "Run paged producer/consumer pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags(), configFile, envFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	pf.StringVar(&envFile, "env-file", "", "env file read before PAGEFLOW_* variables (default ./.env if present)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "log format: console or json")
	pf.Int("max-pages", 0, "page queue capacity (0 derives it from the CPU count)")
	pf.Int("max-threads", 0, "number of worker slots (0 derives it from the CPU count)")
	pf.Int("page-size", 128, "items per page")
	pf.Bool("fifo", false, "dispatch pages oldest first instead of newest first")
	pf.Bool("stop-on-error", false, "poll every slot after each dispatch to stop early on a consumer error")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.String("cron", "", "run on this cron schedule until interrupted instead of once")

	root.AddCommand(newApplyCommand(a), newRedisScanCommand(a))
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) setup(flags *pflag.FlagSet, configFile, envFile string) error {
	bound := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			bound[key] = f
		}
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      bound,
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.undoGlobals = zap.ReplaceGlobals(logger)
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.Config{Enabled: true, Registry: a.registry}

	logger.Debug("configuration loaded",
		zap.Int("max_pages", cfg.Pipeline.MaxPages),
		zap.Int("max_threads", cfg.Pipeline.MaxThreads),
		zap.Int("page_size", cfg.Pipeline.PageSize),
		zap.Bool("fifo", cfg.Pipeline.FIFO),
		zap.Bool("stop_on_error", cfg.Pipeline.StopOnError),
		zap.String("cron", cfg.Schedule.Cron))
	return nil
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.undoGlobals != nil {
		a.undoGlobals()
	}
}

// newPipeline builds an instrumented pipeline sized from the configuration.
func newPipeline[T any](a *app, name string, producer pipeline.Producer[T], consumer pipeline.Consumer[T]) (pipeline.Pipeline[T], error) {
	cfg := pipeline.Config[T]{
		Name:         name,
		MaxPages:     a.cfg.Pipeline.MaxPages,
		MaxThreads:   a.cfg.Pipeline.MaxThreads,
		PageCapacity: a.cfg.Pipeline.PageSize,
		Producer:     producer,
		Consumer:     consumer,
		Logger:       a.logger,
	}
	if a.cfg.Pipeline.FIFO {
		cfg.Discipline = page.FIFO
	}
	if a.cfg.Pipeline.StopOnError {
		cfg.ErrorPolicy = pipeline.StopOnError
	}

	mp, err := pipeline.NewWithConfigAndMetrics(cfg, name, a.metrics)
	if err != nil {
		return nil, err
	}
	return mp, nil
}
