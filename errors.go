package bomtool

import (
	"fmt"

	"github.com/pkg/errors"
)

// The error taxonomy mirrors how commands react to failure: configuration
// problems abort a command without retry, format problems surface to the
// caller of the parse, and unexpected errors mark invariant violations.

// ConfigError indicates missing or invalid configuration, including
// repository database entries that cannot be resolved.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// NewConfigError formats a new ConfigError.
func NewConfigError(format string, args ...interface{}) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether the cause of err is a ConfigError.
func IsConfigError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigError)
	return ok
}

// FormatError indicates malformed input, such as a version tag that does
// not follow the tag naming convention.
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string { return e.msg }

// NewFormatError formats a new FormatError.
func NewFormatError(format string, args ...interface{}) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// IsFormatError reports whether the cause of err is a FormatError.
func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

// UnexpectedError indicates a violated invariant, e.g. a working copy
// checked out at the wrong branch, or reaching code assumed unreachable.
type UnexpectedError struct {
	msg string
}

func (e *UnexpectedError) Error() string { return e.msg }

// NewUnexpectedError formats a new UnexpectedError.
func NewUnexpectedError(format string, args ...interface{}) error {
	return &UnexpectedError{msg: fmt.Sprintf(format, args...)}
}

// IsUnexpectedError reports whether the cause of err is an UnexpectedError.
func IsUnexpectedError(err error) bool {
	_, ok := errors.Cause(err).(*UnexpectedError)
	return ok
}
