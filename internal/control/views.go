package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/infra/remote"
	"github.com/hackfest/syncengine/internal/sync/mutation"
)

// QueryState is the reactive read surface handed to UI code: data, loading
// flag, and last classified error. Stale data stays visible while a
// revalidation runs, and survives fetch errors.
type QueryState struct {
	Data    json.RawMessage
	Loading bool
	Err     *domain.ClassifiedError
}

// QueryView subscribes one consumer to one query key. Create with
// Engine.Query, release with Close.
type QueryView struct {
	engine   *Engine
	key      domain.QueryKey
	onChange func(QueryState)

	mu    sync.RWMutex
	state QueryState

	closeOnce sync.Once
	unsub     func()
}

// Query registers a view over a key: the key is ensured against the cache
// with the given profile, and onChange (optional) is pushed on every cache
// commit for the key.
func (e *Engine) Query(key domain.QueryKey, q remote.Query, profileName domain.ProfileName, onChange func(QueryState)) *QueryView {
	v := &QueryView{
		engine:   e,
		key:      key.Clone(),
		onChange: onChange,
	}
	v.unsub = e.store.Subscribe(key, func(snap domain.CacheEntry) {
		v.update(snap)
	})
	snap := e.store.Ensure(context.Background(), key, e.Profile(profileName), e.fetcher(q))
	v.update(snap)
	return v
}

// State returns the current view state.
func (v *QueryView) State() QueryState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Refetch forces a revalidation regardless of staleness.
func (v *QueryView) Refetch() {
	v.engine.store.Refetch(context.Background(), v.key)
}

// Close detaches the subscription. The entry stays cached until its GC time.
func (v *QueryView) Close() {
	v.closeOnce.Do(v.unsub)
}

func (v *QueryView) update(snap domain.CacheEntry) {
	data, _ := snap.Data.(json.RawMessage)
	next := QueryState{
		Data:    data,
		Loading: snap.Status == domain.StatusFetching,
		Err:     snap.ErrorInfo,
	}
	v.mu.Lock()
	v.state = next
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(next)
	}
}

// MutationView is the per-mutation surface: Mutate plus pending/error state.
type MutationView struct {
	engine *Engine
	name   string

	mu      sync.RWMutex
	pending bool
	err     *domain.ClassifiedError
}

// Mutation creates a view for one mutation name.
func (e *Engine) Mutation(name string) *MutationView {
	return &MutationView{engine: e, name: name}
}

// Mutate runs the write. The request's Name is forced to the view's.
func (v *MutationView) Mutate(ctx context.Context, req mutation.Request) (json.RawMessage, error) {
	req.Name = v.name

	v.mu.Lock()
	v.pending = true
	v.err = nil
	v.mu.Unlock()

	result, err := v.engine.Mutate(ctx, req)

	v.mu.Lock()
	v.pending = false
	if ce, ok := asClassified(err); ok {
		v.err = ce
	}
	v.mu.Unlock()

	return result, err
}

// Pending reports whether a write is in flight.
func (v *MutationView) Pending() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pending
}

// Err returns the last classified failure, if any.
func (v *MutationView) Err() *domain.ClassifiedError {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

func asClassified(err error) (*domain.ClassifiedError, bool) {
	if err == nil {
		return nil, false
	}
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
