package bucket

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
)

// Limit is a refill rate in tokens per second. Use Inf for no limit.
type Limit float64

// Inf is the infinite rate limit; Wait never blocks.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between round trips to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Clock provides the current time. It can be replaced in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration for a Limiter.
type Config struct {
	// Name identifies the limiter in metrics.
	Name string

	// Rate is the number of tokens added per second.
	Rate Limit

	// Burst is the maximum number of tokens held at once.
	Burst int

	// InitialTokens is the starting token count. Negative starts full.
	InitialTokens int

	// Clock provides the current time. Defaults to SystemClock.
	Clock Clock

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config
}

// Limiter is a token bucket shared by the callers that pace a source.
// It is safe for concurrent use.
type Limiter struct {
	name     string
	clock    Clock
	registry *metrics.Registry

	mu     sync.Mutex
	limit  Limit
	burst  int
	tokens float64
	last   time.Time
}

// New creates a Limiter refilling at rate up to burst tokens, starting full.
func New(rate Limit, burst int) (*Limiter, error) {
	return NewWithConfig(Config{Rate: rate, Burst: burst, InitialTokens: -1})
}

// NewWithConfig creates a Limiter from config.
func NewWithConfig(config Config) (*Limiter, error) {
	if config.Rate < 0 || math.IsNaN(float64(config.Rate)) {
		return nil, pferrors.NewValidationError("bucket", "rate", config.Rate, "rate cannot be negative").
			WithHint("use bucket.Inf to disable pacing")
	}
	if err := validation.ValidatePositive("bucket", "burst", config.Burst); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "bucket"
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	tokens := float64(config.InitialTokens)
	if config.InitialTokens < 0 || config.InitialTokens > config.Burst {
		tokens = float64(config.Burst)
	}

	l := &Limiter{
		name:   config.Name,
		clock:  config.Clock,
		limit:  config.Rate,
		burst:  config.Burst,
		tokens: tokens,
		last:   config.Clock.Now(),
	}
	if config.Metrics.Enabled {
		l.registry = config.Metrics.Resolve()
	}
	return l, nil
}

// Allow reports whether one token is available now and takes it if so.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN reports whether n tokens are available now and takes them if so.
func (l *Limiter) AllowN(n int) bool {
	if n <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(l.clock.Now())
	if l.limit == Inf || l.tokens >= float64(n) {
		if l.limit != Inf {
			l.tokens -= float64(n)
		}
		return true
	}
	l.deny()
	return false
}

// Wait blocks until one token is available.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available or ctx is done. Tokens taken by
// a canceled wait are returned to the bucket.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	delay, err := l.reserve(n)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	start := time.Now()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		if l.registry != nil {
			l.registry.RateLimitWaits.WithLabelValues(l.name).Inc()
			l.registry.RateLimitWaitDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
		}
		return nil
	case <-ctx.Done():
		l.restore(n)
		return ctx.Err()
	}
}

// reserve takes n tokens, letting the balance go negative, and returns how
// long the caller must wait before acting.
func (l *Limiter) reserve(n int) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.refill(now)

	if l.limit == Inf {
		return 0, nil
	}
	if n > l.burst {
		l.deny()
		return 0, pferrors.NewOperationError("bucket", "WaitN",
			fmt.Errorf("%w: %d tokens exceed burst %d", pferrors.ErrCapacityExceeded, n, l.burst))
	}
	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return 0, nil
	}
	if l.limit == 0 {
		l.deny()
		return 0, pferrors.NewOperationError("bucket", "WaitN",
			fmt.Errorf("%w: zero rate and %.0f tokens left", pferrors.ErrCapacityExceeded, l.tokens))
	}

	missing := float64(n) - l.tokens
	l.tokens -= float64(n)
	return time.Duration(float64(time.Second) * missing / float64(l.limit)), nil
}

func (l *Limiter) restore(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clock.Now())
	l.tokens = math.Min(l.tokens+float64(n), float64(l.burst))
}

// refill adds the tokens earned since the last update. Callers hold mu.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last)
	if elapsed <= 0 {
		return
	}
	l.last = now

	switch {
	case l.limit == Inf:
		l.tokens = float64(l.burst)
	case l.limit > 0:
		l.tokens = math.Min(l.tokens+elapsed.Seconds()*float64(l.limit), float64(l.burst))
	}
}

func (l *Limiter) deny() {
	if l.registry != nil {
		l.registry.RateLimitDenied.WithLabelValues(l.name).Inc()
	}
}

// SetLimit changes the refill rate, keeping the tokens earned so far.
func (l *Limiter) SetLimit(limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clock.Now())
	l.limit = limit
}

// Limit returns the current refill rate.
func (l *Limiter) Limit() Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Tokens returns the number of tokens currently available. It is negative
// while waiters hold reservations.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clock.Now())
	return l.tokens
}
