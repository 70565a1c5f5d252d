package ftr

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-ftr/config"
	"github.com/ethereum-optimism/infra/op-ftr/providers"
	"github.com/ethereum-optimism/infra/op-ftr/version"
)

type (
	// ConfigError is returned when the config cannot be loaded or defines no tests
	ConfigError = config.Error
	// VersionMismatchError is returned when the es service reports an unexpected version
	VersionMismatchError = version.MismatchError
	// VersionFetchError is returned when the es service cannot report its version
	VersionFetchError = version.FetchError
	// ProviderError is returned when a service or page object cannot be constructed
	ProviderError = providers.ProviderError
)

// ErrNoTests is returned for configs without test files or a custom test runner
var ErrNoTests = config.ErrNoTests

// ErrCustomRunnerStats is returned by GetTestStats for configs that use a custom test runner
var ErrCustomRunnerStats = errors.New("Unable to get test stats for config that uses a custom test runner") //nolint:staticcheck

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, provider failures, version mismatches, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError represents a failure from test assertions (exit code 1)
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// CleanupError is returned when the cleanup phase fails after an otherwise successful run
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *CleanupError) Unwrap() error {
	return e.Err
}

// IsCleanupError checks if the error is or wraps a CleanupError
func IsCleanupError(err error) bool {
	var cleanupErr *CleanupError
	return err != nil && errors.As(err, &cleanupErr)
}
