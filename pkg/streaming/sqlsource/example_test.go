package sqlsource_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/vnykmshr/pageflow/pkg/streaming/sqlsource"
)

func ExampleApplyParallel() {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer db.Close()

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, `CREATE TABLE numbers AS SELECT CAST(range AS INTEGER) AS n FROM range(1000)`)

	var sum atomic.Int64
	err = sqlsource.ApplyParallel(ctx, db, `SELECT n FROM numbers`,
		func(rows *sql.Rows) (int, error) {
			var n int
			err := rows.Scan(&n)
			return n, err
		},
		func(ctx context.Context, n int) error {
			sum.Add(int64(n))
			return nil
		},
		sqlsource.WithSizing(4, 2),
	)

	fmt.Println(err, sum.Load())
	// Output: <nil> 499500
}
