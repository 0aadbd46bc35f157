package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/pageflow/pkg/ratelimit/bucket"
	"github.com/vnykmshr/pageflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/pageflow/pkg/streaming/redissource"
	"github.com/vnykmshr/pageflow/pkg/streaming/writer"
)

func newRedisScanCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "redis-scan",
		Short: "Write key=value lines for every string key matching a pattern",
		Long: `redis-scan walks the keyspace with SCAN, resolves each page of keys with
MGET on the worker slots and writes one key=value line per key. Keys that
vanish during the scan or hold non-string values are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return a.runRedisScan(cmd.Context(), out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write lines to this file instead of stdout")
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().String("match", "*", "SCAN MATCH pattern")
	cmd.Flags().Int64("count", 128, "SCAN COUNT hint")
	cmd.Flags().Float64("scan-rate", 0, "maximum SCAN calls per second (0 for no limit)")
	return cmd
}

func (a *app) runRedisScan(ctx context.Context, out io.Writer) error {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{a.cfg.Redis.Addr},
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	defer client.Close()

	if err := redissource.Ping(ctx, client, redissource.PingConfig{
		MaxElapsedTime: a.cfg.Redis.PingTimeout,
		Logger:         a.logger,
	}); err != nil {
		return err
	}

	return a.run(ctx, "redis_scan", scheduler.JobFunc(func(ctx context.Context) error {
		return a.scanPass(ctx, client, out)
	}))
}

// scanPass runs one full scan. Each pass gets its own writer so a failed
// pass never leaves half a page buffered for the next one.
func (a *app) scanPass(ctx context.Context, client redis.UniversalClient, out io.Writer) error {
	scanCfg := redissource.ScanConfig{
		Name:    "redis_scan",
		Match:   a.cfg.Redis.Match,
		Count:   a.cfg.Redis.Count,
		Logger:  a.logger,
		Metrics: a.metrics,
	}
	if a.cfg.Redis.ScanRate > 0 {
		limiter, err := bucket.NewWithConfig(bucket.Config{
			Name:          "redis_scan",
			Rate:          bucket.Limit(a.cfg.Redis.ScanRate),
			Burst:         a.cfg.Redis.ScanBurst,
			InitialTokens: -1,
			Metrics:       a.metrics,
		})
		if err != nil {
			return err
		}
		scanCfg.Limiter = limiter
	}

	keys, err := redissource.NewScanProducer(client, scanCfg)
	if err != nil {
		return err
	}

	w := writer.NewWithConfig(out, writer.Lines(redissource.Pair.String), writer.Config{
		Name:    "redis_scan",
		Logger:  a.logger,
		Metrics: a.metrics,
	})

	values, err := redissource.NewValueConsumer(client, w, redissource.ValueConfig{
		Name:    "redis_mget",
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	p, err := newPipeline[string](a, "redis_scan", keys, values)
	if err != nil {
		return err
	}

	runErr := p.Run(ctx)
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush output: %w", err)
	}

	scan, vals, ws := keys.Stats(), values.Stats(), w.Stats()
	a.logger.Info("scan pass finished",
		zap.Int64("scan_calls", scan.Calls),
		zap.Int64("keys", scan.Keys),
		zap.Int64("values", vals.Values),
		zap.Int64("missing", vals.Missing),
		zap.Int64("bytes", ws.BytesWritten),
		zap.Error(runErr))
	return runErr
}
