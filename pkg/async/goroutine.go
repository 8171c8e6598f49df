package async

import (
	"context"
	"time"

	"github.com/platinummonkey/barbell/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery, a timeout and error
// logging. The parent's values (request id, logger) are kept but its
// cancellation is not, so work scheduled from a request survives the response.
//
//	async.SafeGo(r.Context(), 5*time.Second, "audit denial", func(ctx context.Context) error {
//	    return audit.Log(ctx, entry)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(context.WithoutCancel(parentCtx), timeout, taskName, fn)
}

func run(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	logger := observability.FromContext(ctx).WithField("task", taskName)
	defer observability.RecoverPanic(logger, taskName)

	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("background task failed")
	}
}
