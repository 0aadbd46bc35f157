/*
Package sqlsource reads database/sql result sets into pipeline pages.

A Producer issues its query lazily on the first Produce call and then reads
PageSize rows per page until the cursor is exhausted. Rows are converted by a
caller supplied ScanFunc, so the source works with any driver and row type.

	src, err := sqlsource.New(db, func(rows *sql.Rows) (User, error) {
		var u User
		err := rows.Scan(&u.ID, &u.Name)
		return u, err
	}, "SELECT id, name FROM users")
	if err != nil {
		return err
	}
	defer src.Close()

	p, _ := pipeline.New[User](src, consumer)
	err = p.Run(ctx)

Statements can also be built with squirrel:

	q := sq.Select("id", "name").From("users").Where(sq.Eq{"active": true})
	src, err := sqlsource.NewFromBuilder(db, scanUser, q, sqlsource.Config{PageSize: 256})

# Apply

Apply and ApplyParallel visit every row of a query with a function. Apply runs
on the calling goroutine. ApplyParallel reads pages on one goroutine and hands
them to a pipeline of worker slots sized from the host CPU count unless
WithSizing is given:

	err := sqlsource.ApplyParallel(ctx, db, "SELECT i, s FROM test", scanRow,
		func(ctx context.Context, r Row) error {
			return check(r)
		},
		sqlsource.WithPageSize(128),
		sqlsource.WithStopOnError(),
	)

The function must be safe for concurrent use. Rows of one page are visited
in order; pages are visited in no particular order.
*/
package sqlsource
