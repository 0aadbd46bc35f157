package validation

import (
	stderrors "errors"
	"testing"

	"github.com/vnykmshr/pageflow/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large negative", -1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("pipeline", "max_pages", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				if !stderrors.Is(err, errors.ErrInvalidConfiguration) {
					t.Error("expected error to wrap ErrInvalidConfiguration")
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 128, false},
		{"zero value", 0, false},
		{"negative value", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("pipeline", "page_capacity", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNonNegative(%d) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateOtherNumbers(t *testing.T) {
	if err := ValidatePositive("bucket", "rate", 0.5); err != nil {
		t.Errorf("0.5 should be positive: %v", err)
	}
	if err := ValidateNonNegative("redissource", "count", int64(-1)); err == nil {
		t.Error("int64 -1 should be rejected")
	}
	if err := ValidatePositive("sizing", "threads", uint(0)); err == nil {
		t.Error("uint 0 should be rejected")
	}
}

func TestValidateNotNil(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"non-nil func", func() {}, false},
		{"non-nil pointer", new(int), false},
		{"nil value", nil, true},
		{"nil pointer", (*int)(nil), true},
		{"nil func", (func())(nil), true},
		{"nil map", map[string]int(nil), true},
		{"zero struct", struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotNil("pipeline", "producer", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNotNil error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateNotEmpty(t *testing.T) {
	if err := ValidateNotEmpty("scheduler", "id", "nightly"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := ValidateNotEmpty("scheduler", "id", " "); err != nil {
		t.Errorf("whitespace is not empty, got %v", err)
	}

	err := ValidateNotEmpty("scheduler", "id", "")
	if err == nil {
		t.Fatal("expected error for empty string")
	}

	var valErr *errors.ValidationError
	if !stderrors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if valErr.Hint != "provide a non-empty id" {
		t.Errorf("Hint = %q", valErr.Hint)
	}
}
