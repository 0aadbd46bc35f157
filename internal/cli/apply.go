package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/pageflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/pageflow/pkg/streaming/sqlsource"
)

const (
	applyTable  = "test"
	insertBatch = 1000
)

type testRow struct {
	I int
	S string
}

func scanTestRow(rows *sql.Rows) (testRow, error) {
	var r testRow
	err := rows.Scan(&r.I, &r.S)
	return r, err
}

func newApplyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Compare sequential and parallel passes over a duckdb table",
		Long: `apply populates a duckdb table with rows (i, 's<i>') and visits every row
with four functions, once on the calling goroutine and once through a page
pipeline, printing the wall time of each pass:

  quick  checks the row contents
  slow   sleeps --slow-delay per row
  sync   sleeps --sync-delay per row while holding a shared lock
  test   records each row and verifies every row was seen exactly once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runApply(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("db", "", "duckdb database file (empty for in-memory)")
	cmd.Flags().Int("rows", 100000, "number of rows to populate")
	cmd.Flags().Duration("slow-delay", 100*time.Microsecond, "per-row sleep of the slow check")
	cmd.Flags().Duration("sync-delay", 10*time.Microsecond, "per-row sleep of the sync check, taken under a shared lock")
	return cmd
}

func (a *app) runApply(ctx context.Context, out io.Writer) error {
	db, err := sql.Open("duckdb", a.cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	start := time.Now()
	if err := populate(ctx, db, a.cfg.DB.Rows); err != nil {
		return err
	}
	a.logger.Info("table populated",
		zap.String("table", applyTable),
		zap.Int("rows", a.cfg.DB.Rows),
		zap.Duration("elapsed", time.Since(start)))

	return a.run(ctx, "apply", scheduler.JobFunc(func(ctx context.Context) error {
		return a.benchmark(ctx, db, out)
	}))
}

// populate recreates the table and fills it in batches inside one transaction.
func populate(ctx context.Context, db *sql.DB, rows int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + applyTable,
		"CREATE TABLE " + applyTable + " (i INTEGER NOT NULL PRIMARY KEY, s VARCHAR)",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare table: %w", err)
		}
	}

	for lo := 0; lo < rows; lo += insertBatch {
		hi := lo + insertBatch
		if hi > rows {
			hi = rows
		}
		insert := sq.Insert(applyTable).Columns("i", "s")
		for i := lo; i < hi; i++ {
			insert = insert.Values(i, fmt.Sprintf("s%d", i))
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", lo, hi, err)
		}
	}
	return tx.Commit()
}

type rowCheck struct {
	name string
	fn   sqlsource.RowFunc[testRow]
}

func (a *app) benchmark(ctx context.Context, db *sql.DB, out io.Writer) error {
	query, args, err := sq.Select("i", "s").From(applyTable).ToSql()
	if err != nil {
		return err
	}

	var syncMu sync.Mutex
	seen := make([]int, a.cfg.DB.Rows)
	slowDelay, syncDelay := a.cfg.DB.SlowDelay, a.cfg.DB.SyncDelay

	checks := []rowCheck{
		{"quick", func(ctx context.Context, r testRow) error {
			if r.S != fmt.Sprintf("s%d", r.I) {
				return fmt.Errorf("row %d holds %q", r.I, r.S)
			}
			return nil
		}},
		{"slow", func(ctx context.Context, r testRow) error {
			if slowDelay > 0 {
				time.Sleep(slowDelay)
			}
			return nil
		}},
		{"sync", func(ctx context.Context, r testRow) error {
			syncMu.Lock()
			if syncDelay > 0 {
				time.Sleep(syncDelay)
			}
			syncMu.Unlock()
			return nil
		}},
		{"test", func(ctx context.Context, r testRow) error {
			seen[r.I]++
			return nil
		}},
	}

	fmt.Fprintf(out, "%-8s %14s %14s %8s\n", "fn", "sequential", "parallel", "speedup")
	for _, c := range checks {
		seqStart := time.Now()
		if err := sqlsource.Apply(ctx, db, query, scanTestRow, c.fn,
			sqlsource.WithArgs(args...),
			sqlsource.WithName("apply_"+c.name),
			sqlsource.WithPageSize(a.cfg.Pipeline.PageSize),
			sqlsource.WithLogger(a.logger),
		); err != nil {
			return fmt.Errorf("sequential %s: %w", c.name, err)
		}
		seqElapsed := time.Since(seqStart)

		parStart := time.Now()
		if err := sqlsource.ApplyParallel(ctx, db, query, scanTestRow, c.fn, a.applyOptions("apply_"+c.name, args)...); err != nil {
			return fmt.Errorf("parallel %s: %w", c.name, err)
		}
		parElapsed := time.Since(parStart)

		fmt.Fprintf(out, "%-8s %14s %14s %7.2fx\n", c.name,
			seqElapsed.Round(time.Microsecond),
			parElapsed.Round(time.Microsecond),
			float64(seqElapsed)/float64(parElapsed))
	}

	// the test check ran twice per row: once sequentially, once in parallel
	for i, n := range seen {
		if n != 2 {
			return fmt.Errorf("row %d visited %d times, want 2", i, n)
		}
	}
	fmt.Fprintln(out, "parallel check OK")
	return nil
}

func (a *app) applyOptions(name string, args []any) []sqlsource.Option {
	opts := []sqlsource.Option{
		sqlsource.WithArgs(args...),
		sqlsource.WithName(name),
		sqlsource.WithPageSize(a.cfg.Pipeline.PageSize),
		sqlsource.WithSizing(a.cfg.Pipeline.MaxPages, a.cfg.Pipeline.MaxThreads),
		sqlsource.WithLogger(a.logger),
		sqlsource.WithMetrics(a.metrics),
	}
	if a.cfg.Pipeline.FIFO {
		opts = append(opts, sqlsource.WithFIFO())
	}
	if a.cfg.Pipeline.StopOnError {
		opts = append(opts, sqlsource.WithStopOnError())
	}
	return opts
}
