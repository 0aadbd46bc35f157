// Package validation checks constructor arguments for pageflow components.
package validation

import (
	"reflect"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
)

// Number is the set of numeric kinds accepted by the range checks.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint64 | ~float64
}

// ValidatePositive rejects values that are not greater than zero.
func ValidatePositive[N Number](module, field string, value N) error {
	if value <= 0 {
		return pferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative rejects values below zero. Zero usually selects a default.
func ValidateNonNegative[N Number](module, field string, value N) error {
	if value < 0 {
		return pferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 for the default or a positive value")
	}
	return nil
}

// ValidateNotNil rejects nil, including typed nil pointers, funcs, maps,
// channels and slices stored in an interface.
func ValidateNotNil(module, field string, value interface{}) error {
	if isNil(value) {
		return pferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// ValidateNotEmpty rejects the empty string.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return pferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
