package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSessionNotFound = errors.New("session not found")
	ErrProviderFailure = errors.New("provider failure")
)

// ProviderError wraps a failed completion call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProviderFailure) hold for every ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// Timeout reports whether the call failed because its deadline expired.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
