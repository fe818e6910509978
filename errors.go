package rwrouter

import (
	"errors"
	"fmt"
	"time"
)

// ErrProxyClosed is provided when a connection is requested from a Proxy that has already been released
var ErrProxyClosed = errors.New("rwrouter: connection proxy already released")

// ConfigurationError indicates that the backend set is unusable, and the router can't be started
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return "rwrouter: invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownBackendError is provided when a backend id has no registered backend
type UnknownBackendError struct {
	ID int
}

func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("rwrouter: unknown backend %d", e.ID)
}

// BackendUnavailableError is provided when the selected backend's pool could not produce a connection
type BackendUnavailableError struct {
	ID   int
	Role Role
	Err  error
}

func (e BackendUnavailableError) Error() string {
	return fmt.Sprintf("rwrouter: %s backend %d unavailable: %s", e.Role, e.ID, e.Err)
}

func (e BackendUnavailableError) Unwrap() error {
	return e.Err
}

// PoolExhaustedError is provided when no pooled connection became free within the acquire timeout
type PoolExhaustedError struct {
	Timeout time.Duration
	Err     error
}

func (e PoolExhaustedError) Error() string {
	return fmt.Sprintf("rwrouter: no connection available within %s", e.Timeout)
}

func (e PoolExhaustedError) Unwrap() error {
	return e.Err
}

// IsPoolExhausted reports whether err, or anything it wraps, is a PoolExhaustedError
func IsPoolExhausted(err error) bool {
	var pe PoolExhaustedError
	return errors.As(err, &pe)
}
