package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "resource is closed"},
		{"ErrCapacityExceeded", ErrCapacityExceeded, "capacity exceeded"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
		{"ErrRunInProgress", ErrRunInProgress, "run in progress"},
		{"ErrSlotBusy", ErrSlotBusy, "worker slot is busy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "pipeline",
				Field:  "max_pages",
				Value:  -1,
				Reason: "must be positive",
			},
			want: "pipeline: invalid max_pages=-1 (must be positive)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "slotpool",
				Field:  "size",
				Value:  0,
				Reason: "must be positive",
				Hint:   "use a value greater than 0",
			},
			want: "slotpool: invalid size=0 (must be positive) - use a value greater than 0",
		},
		{
			name: "string value",
			err: &ValidationError{
				Module: "scheduler",
				Field:  "cron",
				Value:  "",
				Reason: "cannot be empty",
			},
			want: "scheduler: invalid cron= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := NewValidationError("test", "field", 0, "test").WithHint("hint")

	if !errors.Is(verr, ErrInvalidConfiguration) {
		t.Error("ValidationError should wrap ErrInvalidConfiguration")
	}
	if !IsValidationError(fmt.Errorf("wrapped: %w", verr)) {
		t.Error("IsValidationError should see through wrapping")
	}
	if IsValidationError(errors.New("plain")) {
		t.Error("plain error is not a ValidationError")
	}
}

func TestOperationError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewOperationError("writer", "Consume", cause).WithContext("page 3")

	if got, want := err.Error(), "writer.Consume failed: disk full (page 3)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("OperationError should wrap its cause")
	}
}

func TestPipelineErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name         string
		err          error
		want         string
		producer     bool
		consumer     bool
		config       bool
		wrapsCause   bool
		wrapsInProgr bool
	}{
		{
			name:       "producer",
			err:        &ProducerError{Page: 4, Err: cause},
			want:       "producer failed on page 4: boom",
			producer:   true,
			wrapsCause: true,
		},
		{
			name:       "consumer",
			err:        &ConsumerError{Page: 2, Slot: 1, Err: cause},
			want:       "consumer failed on page 2 (slot 1): boom",
			consumer:   true,
			wrapsCause: true,
		},
		{
			name:         "config",
			err:          NewConfigError("set max threads", ErrRunInProgress),
			want:         "cannot set max threads: run in progress",
			config:       true,
			wrapsInProgr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}

			wrapped := fmt.Errorf("run: %w", tt.err)
			if IsProducerError(wrapped) != tt.producer {
				t.Errorf("IsProducerError = %v, want %v", !tt.producer, tt.producer)
			}
			if IsConsumerError(wrapped) != tt.consumer {
				t.Errorf("IsConsumerError = %v, want %v", !tt.consumer, tt.consumer)
			}
			if IsConfigError(wrapped) != tt.config {
				t.Errorf("IsConfigError = %v, want %v", !tt.config, tt.config)
			}
			if errors.Is(wrapped, cause) != tt.wrapsCause {
				t.Errorf("errors.Is(cause) = %v, want %v", !tt.wrapsCause, tt.wrapsCause)
			}
			if errors.Is(wrapped, ErrRunInProgress) != tt.wrapsInProgr {
				t.Errorf("errors.Is(ErrRunInProgress) = %v, want %v", !tt.wrapsInProgr, tt.wrapsInProgr)
			}
		})
	}
}
