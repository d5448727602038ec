package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/infra/kv"
	"github.com/hackfest/syncengine/internal/sync/metrics"
)

// Queue persists deferred mutations through the key/value store as one
// JSON-encoded list. The capacity cap is enforced here, not assumed from the
// store: when full, the oldest entries are dropped.
type Queue struct {
	mu  sync.Mutex
	kv  kv.Store
	key string
	cap int
	log *slog.Logger
}

// NewQueue creates a queue persisted under the given key with the given
// capacity.
func NewQueue(store kv.Store, key string, capacity int, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{kv: store, key: key, cap: capacity, log: log}
}

// Enqueue appends a mutation, dropping the oldest entries beyond capacity.
// Returns the number of dropped entries.
func (q *Queue) Enqueue(ctx context.Context, m domain.PendingMutation) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return 0, err
	}

	items = append(items, m)
	dropped := 0
	if q.cap > 0 && len(items) > q.cap {
		dropped = len(items) - q.cap
		items = items[dropped:]
	}

	if err := q.save(ctx, items); err != nil {
		return 0, err
	}
	metrics.OfflineQueueDepth.Set(float64(len(items)))
	q.log.Info("mutation queued for replay",
		"mutation", m.Name, "resource", m.Resource, "depth", len(items), "dropped", dropped)
	return dropped, nil
}

// Len returns the number of queued mutations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Drain replays every queued mutation in FIFO order exactly once. The queue
// is cleared before replay starts, so a replay failure does not re-queue:
// each replay goes through the normal executor path where rollback and
// notification already apply.
func (q *Queue) Drain(ctx context.Context, replay func(domain.PendingMutation) error) (int, error) {
	q.mu.Lock()
	items, err := q.load(ctx)
	if err != nil {
		q.mu.Unlock()
		return 0, err
	}
	if len(items) == 0 {
		q.mu.Unlock()
		return 0, nil
	}
	if err := q.kv.Delete(ctx, q.key); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("clear offline queue: %w", err)
	}
	metrics.OfflineQueueDepth.Set(0)
	q.mu.Unlock()

	replayed := 0
	for _, m := range items {
		if err := replay(m); err != nil {
			q.log.Warn("queued mutation replay failed",
				"mutation", m.Name, "resource", m.Resource, "error", err)
			continue
		}
		replayed++
	}
	q.log.Info("offline queue drained", "total", len(items), "succeeded", replayed)
	return replayed, nil
}

func (q *Queue) load(ctx context.Context) ([]domain.PendingMutation, error) {
	raw, found, err := q.kv.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("load offline queue: %w", err)
	}
	if !found || raw == "" {
		return nil, nil
	}
	var items []domain.PendingMutation
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode offline queue: %w", err)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []domain.PendingMutation) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode offline queue: %w", err)
	}
	if err := q.kv.Set(ctx, q.key, string(data)); err != nil {
		return fmt.Errorf("save offline queue: %w", err)
	}
	return nil
}
