// Package ratelimit groups the limiters used to pace data sources.
//
// A pipeline producer runs on the scheduler goroutine, so a limiter in the
// producer bounds how hard a source is read without slowing the worker
// slots that consume pages already fetched:
//
//	limiter, _ := bucket.New(bucket.Every(10*time.Millisecond), 1)
//	keys, _ := redissource.NewScanProducer(client, redissource.ScanConfig{
//		Match:   "user:*",
//		Limiter: limiter,
//	})
package ratelimit
