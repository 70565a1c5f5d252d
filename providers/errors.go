package providers

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateProvider    = errors.New("provider already registered")
	ErrMissingDependency    = errors.New("missing dependency")
	ErrCircularDependency   = errors.New("circular dependency")
	ErrUndeclaredDependency = errors.New("dependency not declared")
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrDeferred             = errors.New("returns a deferred value so it can't be loaded during test analysis")
	ErrPending              = errors.New("provider is not available during test analysis")
)

// ProviderError is returned when a provider cannot be registered or constructed
type ProviderError struct {
	Ref Ref
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Ref, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError checks if an error is a ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
