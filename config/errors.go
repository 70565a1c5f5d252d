package config

import (
	"errors"
	"fmt"
)

// ErrNoTests is returned for configs that have neither test files nor a custom test runner
var ErrNoTests = errors.New("No tests defined.") //nolint:staticcheck

// Error describes a failure to load or validate a config
type Error struct {
	Op   string // read, parse, extends, override, validate
	Path string // file or key path the error relates to
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("config %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigError checks if an error is a config Error
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
