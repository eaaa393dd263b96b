package errors

import (
	"errors"
	"fmt"
)

// Startup errors returned while wiring the service from configuration
var (
	ErrMisconfigured = errors.New("misconfigured")
	ErrUnsupported   = errors.New("unsupported")
)

// Wrapf wraps err with a formatted prefix. A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
