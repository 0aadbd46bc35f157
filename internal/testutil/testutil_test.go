package testutil

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(50 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestPeakCounter(t *testing.T) {
	var c PeakCounter
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Enter()
			<-release
			c.Leave()
		}()
	}

	Eventually(t, func() bool { return c.Current() == 5 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	AssertEqual(t, c.Current(), int64(0))
	AssertEqual(t, c.Peak(), int64(5))
}

func TestMockWriter(t *testing.T) {
	w := NewMockWriter()

	n, err := w.Write([]byte("page"))
	AssertNoError(t, err)
	AssertEqual(t, n, 4)
	AssertEqual(t, w.String(), "page")

	w.FailNext(2, nil)
	_, err = w.Write([]byte("x"))
	AssertErrorIs(t, err, ErrMockWrite)
	_, err = w.Write([]byte("x"))
	AssertErrorIs(t, err, ErrMockWrite)
	_, err = w.Write([]byte("ok"))
	AssertNoError(t, err)
	AssertEqual(t, w.WriteCount(), 4)

	w.LimitWrites(3)
	n, err = w.Write([]byte("abcdef"))
	AssertNoError(t, err)
	AssertEqual(t, n, 3)
	AssertEqual(t, len(w.Chunks()), 3)
	AssertEqual(t, w.Chunks()[2], "abc")

	boom := errors.New("boom")
	w.FailAlways(boom)
	_, err = w.Write([]byte("y"))
	AssertErrorIs(t, err, boom)
	AssertEqual(t, w.Len(), len("pageokabc"))
}
