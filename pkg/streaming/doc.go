/*
Package streaming holds the producers and consumers that connect pipelines
to real data.

  - sqlsource: pages the rows of one query through a database/sql cursor
  - redissource: pages keys with SCAN and resolves them with MGET
  - writer: writes each page to an io.Writer without interleaving pages

Sources are driven only from the pipeline's scheduling goroutine and need no
locking of their own cursor state. Consumers run in worker slots and must be
safe for concurrent use; PageWriter and ValueConsumer are.

	src, _ := sqlsource.New(db, scanRow, "SELECT id, payload FROM events")
	defer src.Close()
	out := writer.New(f, writer.Lines(Event.String))
	p, _ := pipeline.New[Event](src, out)
	if err := p.Run(ctx); err != nil {
		return err
	}
	return out.Close()
*/
package streaming
