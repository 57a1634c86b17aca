package utils

import (
	"github.com/pkg/errors"
)

// Sentinel error kinds shared across hrtcore's components. Callers branch on these with
// errors.Is; wrapped errors retain the sentinel.
var (
	// ErrNotInitialized is returned for operations attempted before Framework.Initialize or after
	// Shutdown.
	ErrNotInitialized = errors.New("framework not initialized")

	// ErrAlreadyInitialized is returned by a second call to Framework.Initialize.
	ErrAlreadyInitialized = errors.New("framework already initialized")

	// ErrNotFound is returned for an unknown path, id, name/instance, or handle.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRegistered is returned on a packed device id collision at registration.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNoFreeInstance is returned when all instance slots for a name are taken.
	ErrNoFreeInstance = errors.New("no free instance")

	// ErrInvalidHandle is returned for a handle with a nil reference or mismatched type.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrUnsupported is returned by the default ioctl/read/write implementations.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrTimeout is returned when WaitForUpdate expires with no updates.
	ErrTimeout = errors.New("timed out waiting for update")

	// ErrSystemError wraps an underlying mutex/clock/thread failure.
	ErrSystemError = errors.New("system error")
)

// NewNotFoundError reports that name (a path, id, or handle description) could not be located.
func NewNotFoundError(name string) error {
	return errors.Wrapf(ErrNotFound, "%q", name)
}

// NewAlreadyRegisteredError reports a duplicate packed device id or name+instance pair.
func NewAlreadyRegisteredError(name string) error {
	return errors.Wrapf(ErrAlreadyRegistered, "%q", name)
}

// NewUnexpectedTypeError is used when there is a type mismatch, e.g. narrowing a device handle to
// the wrong concrete driver type.
func NewUnexpectedTypeError[T any](actual interface{}) error {
	var zero T
	return errors.Wrapf(ErrInvalidHandle, "expected %T but got %T", zero, actual)
}

// NewSystemError wraps a low-level failure (clock, thread creation, scheduling) with the
// operation that triggered it.
func NewSystemError(op string, cause error) error {
	return errors.Wrapf(ErrSystemError, "%s: %s", op, cause)
}
