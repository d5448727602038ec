package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

// CallFunc is an asynchronous remote call the deadline guard can wrap.
type CallFunc func(ctx context.Context) (json.RawMessage, error)

// Deadline races fn against a timer. On expiry the result is a Timeout
// classification and the underlying call is abandoned: its eventual
// resolution, if any, is discarded. A non-positive duration disables the
// guard.
func Deadline(ctx context.Context, d time.Duration, fn CallFunc) (json.RawMessage, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		data json.RawMessage
		err  error
	}
	// Buffered so the abandoned call can still complete and exit.
	ch := make(chan result, 1)

	go func() {
		data, err := fn(ctx)
		ch <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewClassifiedError(domain.ErrTimeout,
				fmt.Sprintf("remote call exceeded %s deadline", d))
		}
		return nil, ctx.Err()
	case r := <-ch:
		return r.data, r.err
	}
}
