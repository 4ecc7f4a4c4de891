package ann

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing or invalid settings: dimension, metric
	// name, backend name or malformed backend parameters. Never retried.
	ErrConfiguration = errors.New("ann: configuration error")

	// ErrBackendUnavailable marks a failure to reach the external engine.
	// The adapter does not retry; callers may retry at a higher level.
	ErrBackendUnavailable = errors.New("ann: backend unavailable")

	// ErrUnsupportedOperation marks an operation that has no effect on the
	// current engine. It is logged as a warning, not returned.
	ErrUnsupportedOperation = errors.New("ann: unsupported operation")
)

// Configurationf returns an ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Unavailable wraps err so that errors.Is matches both ErrBackendUnavailable and err.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsUnavailable reports whether err means the engine could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
