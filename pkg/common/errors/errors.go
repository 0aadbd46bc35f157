package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the pageflow library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRunInProgress indicates that a pipeline run is still outstanding
	ErrRunInProgress = errors.New("run in progress")

	// ErrSlotBusy indicates that a worker slot already holds an in-flight task
	ErrSlotBusy = errors.New("worker slot is busy")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap returns ErrInvalidConfiguration so callers can match on the sentinel.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// OperationError describes a failed I/O operation of a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError for the given cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches additional context and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// ProducerError is raised by the producer on the scheduler goroutine.
// It stops further production; queued and in-flight pages are still drained.
type ProducerError struct {
	// Page is the sequence number of the page being filled.
	Page uint64
	Err  error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer failed on page %d: %v", e.Page, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}

// ConsumerError is raised by a consumer inside a worker slot. It surfaces to
// the scheduler when the slot is polled or at final drain.
type ConsumerError struct {
	Page uint64
	Slot int
	Err  error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("consumer failed on page %d (slot %d): %v", e.Page, e.Slot, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when a reconfiguration is attempted at an illegal time.
// It is fatal and never retried.
type ConfigError struct {
	Op  string
	Err error
}

// NewConfigError wraps err for operation op.
func NewConfigError(op string, err error) *ConfigError {
	return &ConfigError{Op: op, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cannot %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsProducerError reports whether err is or wraps a ProducerError.
func IsProducerError(err error) bool {
	var perr *ProducerError
	return errors.As(err, &perr)
}

// IsConsumerError reports whether err is or wraps a ConsumerError.
func IsConsumerError(err error) bool {
	var cerr *ConsumerError
	return errors.As(err, &cerr)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}
