package context

import (
	"context"
	"errors"
)

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut returns true if the context was canceled due to a timeout
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// Detached returns a context that keeps the values of parent but is never
// canceled. Drain phases use it so that waiting on in-flight work cannot be
// cut short once the caller's context is done.
func Detached(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}
