package validation

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ConfigValidator collects every problem in a configuration instead of
// stopping at the first one. Field names are reported under the validator's
// prefix.
type ConfigValidator struct {
	prefix string
	errs   []error
}

// NewConfigValidator creates a validator that reports fields under prefix
func NewConfigValidator(prefix string) *ConfigValidator {
	return &ConfigValidator{prefix: prefix}
}

func (cv *ConfigValidator) fail(field, format string, args ...any) {
	cv.errs = append(cv.errs, fmt.Errorf("%s.%s: %s", cv.prefix, field, fmt.Sprintf(format, args...)))
}

// Required rejects an empty string
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		cv.fail(field, "required field is empty")
	}
	return cv
}

// RangeFloat rejects values outside [min, max], including NaN
func (cv *ConfigValidator) RangeFloat(field string, value, min, max float64) *ConfigValidator {
	if math.IsNaN(value) || value < min || value > max {
		cv.fail(field, "value %g is outside range [%g, %g]", value, min, max)
	}
	return cv
}

// Finite rejects NaN and infinities
func (cv *ConfigValidator) Finite(field string, value float64) *ConfigValidator {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		cv.fail(field, "value %g is not finite", value)
	}
	return cv
}

// OneOf rejects values that are not in allowed
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if !slices.Contains(allowed, value) {
		cv.fail(field, "value %q must be one of %v", value, allowed)
	}
	return cv
}

// Custom records the error fn returns, wrapped with the field name
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.errs = append(cv.errs, fmt.Errorf("%s.%s: %w", cv.prefix, field, err))
	}
	return cv
}

// When runs validations only if condition holds
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors reports whether any check failed
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errs) > 0
}

// Errors returns every failed check in the order they ran
func (cv *ConfigValidator) Errors() []error {
	return cv.errs
}

// Validate joins every failed check into one error, or returns nil
func (cv *ConfigValidator) Validate() error {
	return errors.Join(cv.errs...)
}

// DefaultOrInt returns value when it is positive, otherwise def
func DefaultOrInt(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}
