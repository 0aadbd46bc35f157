/*
Package redissource connects Redis to pipelines.

ScanProducer walks the keyspace with SCAN and emits pages of keys. The scan
is complete when Redis returns cursor 0. ValueConsumer resolves a page of
keys with one MGET and forwards the key/value pairs as a page to the next
consumer, which is often a writer.PageWriter:

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := redissource.Ping(ctx, client, redissource.PingConfig{}); err != nil {
		return err
	}

	keys, _ := redissource.NewScanProducer(client, redissource.ScanConfig{Match: "user:*"})
	out := writer.New(os.Stdout, writer.Lines(redissource.Pair.String))
	values, _ := redissource.NewValueConsumer(client, out, redissource.ValueConfig{})

	p, _ := pipeline.New[string](keys, values)
	err := p.Run(ctx)

Keys that vanish between SCAN and MGET, or that do not hold strings, are
skipped and counted unless FailOnMissing is set.

Set ScanConfig.Limiter to pace SCAN calls against a busy server. The wait
happens on the producer, so pages already fetched keep flowing to workers.

Ping retries the initial connection check with exponential backoff. It is
the only retry in the package; failed pages are never retried.
*/
package redissource
