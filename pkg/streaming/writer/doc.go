/*
Package writer provides PageWriter, a pipeline consumer that writes encoded
pages to a single io.Writer.

Consumers in a pipeline run concurrently, one per worker slot. PageWriter
encodes every page into a private scratch buffer outside of any lock and then
appends the encoded block to a shared write buffer under a mutex. The bytes of
one page therefore always reach the underlying writer as a contiguous block.

# Quick Start

	file, _ := os.Create("rows.txt")
	defer file.Close()

	w := writer.New(file, writer.Lines(func(r Row) string { return r.String() }))
	defer w.Close()

	p, _ := pipeline.New[Row](source, w)
	err := p.Run(ctx)

# Buffering

Encoded pages are held until BufferSize bytes accumulate, Flush is called or
the writer is closed. A page larger than the buffer is written through in one
call. FlushEveryPage writes every page as soon as it is consumed.

# Errors

A failed or short write is retried MaxRetries times, RetryDelay apart. The
final error is returned from Consume wrapped in an OperationError naming the
page, so the pipeline reports it as the consumer error of that page. Close
flushes the buffer but leaves the underlying writer open.
*/
package writer
