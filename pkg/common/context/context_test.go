package context

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if IsCanceled(ctx) {
		t.Fatal("fresh context reported canceled")
	}
	cancel()
	if !IsCanceled(ctx) {
		t.Fatal("canceled context not reported")
	}
	if IsTimedOut(ctx) {
		t.Fatal("explicit cancel is not a timeout")
	}
}

func TestIsTimedOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	if !IsTimedOut(ctx) {
		t.Fatal("expired deadline not reported as timeout")
	}
}

func TestDetached(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "run-1"))
	cancel()

	detached := Detached(parent)
	if IsCanceled(detached) {
		t.Fatal("detached context must not inherit cancellation")
	}
	if got := detached.Value(ctxKey{}); got != "run-1" {
		t.Fatalf("detached context lost values, got %v", got)
	}
}
