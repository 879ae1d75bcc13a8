package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// WithTimeout runs fn on the calling goroutine with a context that expires
// after limit. fn must return once its context is done. A zero limit runs fn
// unbounded.
//
// Running out of time is an ErrConfig that also matches
// context.DeadlineExceeded. Cancellation of ctx itself is returned as fn
// reported it.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(runCtx)
	if err == nil || ctx.Err() != nil || !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	slog.Warn("operation ran out of time", "op", op, "limit", limit, "elapsed", time.Since(start), "error", err)
	return fmt.Errorf("%w: %w", dserrors.Newf(dserrors.ErrConfig, op, "not finished within %v", limit), context.DeadlineExceeded)
}
