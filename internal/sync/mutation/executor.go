// Package mutation runs writes with optimistic apply, commit, or rollback,
// and serializes conflicting writes against the same resource.
package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/sync/cache"
	"github.com/hackfest/syncengine/internal/sync/invalidation"
	"github.com/hackfest/syncengine/internal/sync/metrics"
)

// ErrBusy rejects a second write for the same (mutation, resource) while one
// is still applying. Rejected synchronously, never queued: double-submit
// races resolve to exactly one attempt.
var ErrBusy = errors.New("mutation already applying for this resource")

// Patch rewrites one cached entry ahead of remote confirmation so the UI
// updates immediately. Apply must return a new value and leave the old one
// untouched; rollback restores the captured snapshot.
type Patch struct {
	Key   domain.QueryKey
	Apply func(old any) any
}

// Request describes one write.
type Request struct {
	Name     string
	Resource string // identity used for double-submit rejection
	Payload  json.RawMessage
	Context  invalidation.Context
	Patches  []Patch
}

// Remote performs the durable write. The executor expects failures to come
// back already classified.
type Remote func(ctx context.Context, m domain.PendingMutation) (json.RawMessage, error)

// Executor owns PendingMutation lifecycles and is the only writer of cached
// data during an optimistic phase.
type Executor struct {
	store  *cache.Store
	remote Remote
	graph  *invalidation.Graph
	log    *slog.Logger

	mu       sync.Mutex
	inflight map[string]string // (name|resource) -> mutation id
}

// NewExecutor wires the executor.
func NewExecutor(store *cache.Store, remote Remote, graph *invalidation.Graph, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		store:    store,
		remote:   remote,
		graph:    graph,
		log:      log,
		inflight: make(map[string]string),
	}
}

func lockKey(name, resource string) string {
	return name + "|" + resource
}

// Busy reports whether a write for the same (name, resource) is applying.
func (e *Executor) Busy(name, resource string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[lockKey(name, resource)]
	return ok
}

// Run executes a write. With patches supplied it captures snapshots of the
// affected entries, applies the patches synchronously, then issues the
// remote call. Success discards the snapshots and cascades invalidation;
// any remote failure, timeout included, rolls every patched entry back
// before the error surfaces. The cache never holds a patch whose write did
// not durably succeed.
func (e *Executor) Run(ctx context.Context, req Request) (json.RawMessage, error) {
	lk := lockKey(req.Name, req.Resource)

	e.mu.Lock()
	if _, busy := e.inflight[lk]; busy {
		e.mu.Unlock()
		metrics.Mutations.WithLabelValues(req.Name, "busy").Inc()
		return nil, ErrBusy
	}
	pending := domain.NewPendingMutation(req.Name, req.Resource, req.Payload, req.Context)
	e.inflight[lk] = pending.ID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, lk)
		e.mu.Unlock()
	}()

	// Optimistic phase: snapshot then patch, in order.
	type applied struct {
		key  domain.QueryKey
		prev domain.CacheEntry
	}
	var snapshots []applied
	for _, p := range req.Patches {
		prev, ok := e.store.Patch(p.Key, p.Apply)
		if !ok {
			// Nothing cached under this key yet; nothing to patch or roll back.
			continue
		}
		snapshots = append(snapshots, applied{key: p.Key, prev: prev})
	}

	result, err := e.remote(ctx, pending)
	if err != nil {
		// Rollback is unconditional on any remote failure.
		for i := len(snapshots) - 1; i >= 0; i-- {
			e.store.Restore(snapshots[i].key, snapshots[i].prev)
		}
		if len(snapshots) > 0 {
			metrics.Rollbacks.WithLabelValues(req.Name).Inc()
		}
		pending.Status = domain.MutationRolledBack
		metrics.Mutations.WithLabelValues(req.Name, "error").Inc()

		var ce *domain.ClassifiedError
		if !errors.As(err, &ce) {
			ce = domain.NewClassifiedError(domain.ErrUnknown, err.Error())
		}
		e.log.Warn("mutation failed",
			"mutation", req.Name, "resource", req.Resource, "kind", ce.Kind)
		return nil, ce
	}

	pending.Status = domain.MutationCommitted
	metrics.Mutations.WithLabelValues(req.Name, "success").Inc()
	if e.graph != nil {
		e.graph.InvalidateFor(ctx, req.Name, req.Context)
	}
	return result, nil
}
