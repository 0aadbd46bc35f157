package testutil

import (
	"bytes"
	"errors"
	"sync"
)

// ErrMockWrite is returned by MockWriter for scheduled failures that were
// not given an error of their own.
var ErrMockWrite = errors.New("mock write failure")

// MockWriter records what a sink receives. Failures and short writes can be
// scheduled to exercise retry paths. Safe for concurrent use.
type MockWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	chunks   []string
	calls    int
	failLeft int
	failErr  error
	always   error
	maxWrite int
}

// NewMockWriter creates an empty MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write accepts p unless a failure is scheduled. With a write limit set,
// at most that many bytes are accepted per call.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.calls++
	switch {
	case mw.always != nil:
		return 0, mw.always
	case mw.failLeft > 0:
		mw.failLeft--
		return 0, mw.failErr
	}

	if mw.maxWrite > 0 && len(p) > mw.maxWrite {
		p = p[:mw.maxWrite]
	}
	mw.chunks = append(mw.chunks, string(p))
	return mw.buf.Write(p)
}

// FailNext makes the next n writes fail with err, or ErrMockWrite if err
// is nil.
func (mw *MockWriter) FailNext(n int, err error) {
	if err == nil {
		err = ErrMockWrite
	}
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failLeft = n
	mw.failErr = err
}

// FailAlways makes every later write fail with err. A nil err clears it.
func (mw *MockWriter) FailAlways(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.always = err
}

// LimitWrites caps the bytes accepted per call, producing short writes.
// Zero removes the cap.
func (mw *MockWriter) LimitWrites(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.maxWrite = n
}

// String returns everything accepted so far.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Len returns the number of bytes accepted so far.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls, failed ones included.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.calls
}

// Chunks returns the data accepted by each successful call, in order.
func (mw *MockWriter) Chunks() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return append([]string(nil), mw.chunks...)
}
