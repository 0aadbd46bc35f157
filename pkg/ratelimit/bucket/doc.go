// Package bucket implements a token bucket limiter.
//
// Tokens refill at Rate per second up to Burst. Allow takes a token if one
// is available; Wait blocks until one is, honoring context cancellation.
// Waiters reserve their tokens up front so concurrent callers are served in
// arrival order.
package bucket
