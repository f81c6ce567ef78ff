package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is a fatal misconfiguration: missing manifest,
	// unreadable credentials, malformed session identity and so on.
	//
	// Operations failing with this should not be retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrExternalCall is a failure of an external collaborator,
	// the batch queue or the remote data store.
	ErrExternalCall = errors.New("external call failed")
)

// Configuration builds an error wrapping ErrConfiguration.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
}

// ExternalCall builds an error wrapping ErrExternalCall.
func ExternalCall(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrExternalCall}, args...)...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
