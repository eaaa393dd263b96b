package identity

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// transportError marks a failure that happened before the provider produced
// an answer.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// retryOnce runs fn and runs it a second time only when the first attempt
// failed in transport. Semantic rejections and cancellations are returned as
// is.
func retryOnce[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !retryable(ctx, err) {
		return v, err
	}
	log.Warn().Err(err).Str("op", op).Msg("identity provider transport failure, retrying once")
	return fn()
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return false
	}
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidIdentity) {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	// x/oauth2 flattens transport failures into plain errors.
	return !errors.Is(err, ErrUnavailable)
}
