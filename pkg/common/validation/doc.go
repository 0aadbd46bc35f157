// Package validation holds the argument checks shared by pageflow
// constructors and Set methods.
//
// Every rejected value surfaces as *errors.ValidationError, which unwraps to
// errors.ErrInvalidConfiguration, so callers can test for either.
package validation
