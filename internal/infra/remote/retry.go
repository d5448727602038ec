package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/sync/metrics"
)

// OnlineChecker reports current connectivity. The retry policy consults it
// before every backoff wait so retries abandon as soon as the link drops.
type OnlineChecker interface {
	State() domain.NetworkState
}

// alwaysOnline is the fallback when no monitor is wired.
type alwaysOnline struct{}

func (alwaysOnline) State() domain.NetworkState {
	return domain.NetworkState{Online: true, Quality: domain.QualityFast}
}

// Policy retries retryable failures with linear backoff: attempt n waits
// BaseDelay*n, capped at MaxRetries retries (MaxRetries+1 attempts total).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Monitor    OnlineChecker
	Log        *slog.Logger
}

// DefaultPolicy provides the documented defaults.
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
}

func (p Policy) monitor() OnlineChecker {
	if p.Monitor == nil {
		return alwaysOnline{}
	}
	return p.Monitor
}

func (p Policy) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// Do runs fn, retrying classified retryable failures. The returned error, if
// any, is always a *domain.ClassifiedError.
func (p Policy) Do(ctx context.Context, op string, fn CallFunc) (json.RawMessage, error) {
	var result json.RawMessage
	var lastKind domain.ErrorKind
	attempt := 0

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= p.MaxRetries {
			return 0, true
		}
		if !p.monitor().State().Online {
			// Connectivity dropped; no point burning the budget.
			return 0, true
		}
		attempt++
		metrics.Retries.WithLabelValues(string(lastKind)).Inc()
		p.logger().Debug("retrying remote call",
			"op", op, "kind", lastKind, "attempt", attempt)
		return time.Duration(attempt) * p.BaseDelay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		// The link may have dropped during the backoff wait; abandon the
		// retry before it fires.
		if attempt > 0 && !p.monitor().State().Online {
			return domain.NewClassifiedError(lastKind, "retry abandoned offline")
		}

		data, callErr := fn(ctx)
		if callErr == nil {
			result = data
			return nil
		}

		ce := Classify(callErr)
		lastKind = ce.Kind
		if !ce.Retryable || !p.monitor().State().Online {
			return ce
		}
		return retry.RetryableError(ce)
	})
	if err != nil {
		return nil, Classify(err)
	}
	return result, nil
}
