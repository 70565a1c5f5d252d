package version

import (
	"context"
	"errors"
	"fmt"
)

// Reporter is implemented by service clients that can report the version of the
// service they talk to.
type Reporter interface {
	Version(ctx context.Context) (string, error)
}

// MismatchError is returned when the service reports a different version than expected
type MismatchError struct {
	Reported string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("ES reports a version number %q which doesn't match supplied es version %q", e.Reported, e.Expected)
}

// FetchError is returned when the version could not be fetched from the service
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("attempted to use the \"es\" service to fetch Elasticsearch version info but the request failed: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsMismatch checks if the error is or wraps a MismatchError
func IsMismatch(err error) bool {
	var mismatch *MismatchError
	return err != nil && errors.As(err, &mismatch)
}

// IsFetchError checks if the error is or wraps a FetchError
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return err != nil && errors.As(err, &fetchErr)
}

// Check asks r for the running version and compares it with expected.
// It performs a single request; retrying is left to the client behind r.
func Check(ctx context.Context, r Reporter, expected Version) error {
	if r == nil {
		return &FetchError{Err: errors.New("no version reporter")}
	}
	reported, err := r.Version(ctx)
	if err != nil {
		return &FetchError{Err: err}
	}
	if !expected.Eql(reported) {
		return &MismatchError{Reported: reported, Expected: expected.Original()}
	}
	return nil
}
