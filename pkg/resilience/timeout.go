package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// WithTimeout bounds a post-build step, such as storing the matrix or
// announcing the run, to timeout. fn must honour its context. When the limit
// is hit the error wraps both ErrTimeout and context.DeadlineExceeded; a
// cancelled parent is reported as such. A non-positive timeout runs fn
// unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, step string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: run cancelled: %w", step, ctx.Err())
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w after %v: %w", step, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
	default:
		return fmt.Errorf("%s: %w", step, err)
	}
}
