// Package cache implements the query cache store: per-key cached results
// with staleness and garbage-collection timers, stale-while-revalidate
// fetching, in-flight dedup, and push notification to subscribers.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/sync/metrics"
)

// Fetcher loads fresh data for one key. Errors should already be classified;
// anything else is recorded as Unknown.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives an entry snapshot on every committed change to that key.
type Listener func(domain.CacheEntry)

// Store is the single shared cache structure. Every mutation to an entry
// happens as one synchronous step under the store lock, so concurrent reads
// never observe partial writes.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	log     *slog.Logger
	closed  bool
}

type entry struct {
	key       domain.QueryKey
	profile   domain.Profile
	fetcher   Fetcher
	data      any
	fetchedAt time.Time
	staleAt   time.Time
	gcAt      time.Time
	status    domain.CacheStatus
	errInfo   *domain.ClassifiedError
	listeners map[int]Listener
	nextSub   int
	gcTimer   *time.Timer

	// epoch counts invalidations; dataEpoch is the epoch the current data
	// was fetched under. dataEpoch < epoch means the data predates an
	// invalidation and must not be treated as fresh.
	epoch     int
	dataEpoch int
}

func (e *entry) Stale(now time.Time) bool {
	return !now.Before(e.staleAt)
}

// Option configures the store.
type Option func(*Store)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current snapshot for a key, if cached.
func (s *Store) Get(key domain.QueryKey) (domain.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return domain.CacheEntry{}, false
	}
	return s.snapshotLocked(e), true
}

// Ensure returns the cached entry immediately if present, and schedules a
// fetch when the entry is absent, errored, or stale (stale-while-revalidate:
// callers that already have data are never blocked). Concurrent Ensure calls
// for a key already fetching attach to the in-flight fetch; exactly one
// network call runs per overlapping stale period.
func (s *Store) Ensure(ctx context.Context, key domain.QueryKey, profile domain.Profile, fetcher Fetcher) domain.CacheEntry {
	s.mu.Lock()
	ks := key.String()
	e, ok := s.entries[ks]
	if !ok {
		e = &entry{
			key:       key.Clone(),
			profile:   profile,
			status:    domain.StatusIdle,
			listeners: make(map[int]Listener),
		}
		s.entries[ks] = e
	} else if e.profile.Name == "" {
		// Placeholder created by Subscribe before the first Ensure.
		e.profile = profile
	}
	e.fetcher = fetcher

	now := s.now()
	needFetch := false
	switch {
	case e.status == domain.StatusFetching:
		// Dedup: attach to the in-flight fetch.
	case e.status == domain.StatusIdle, e.status == domain.StatusError:
		needFetch = true
	case e.dataEpoch != e.epoch:
		// Explicitly invalidated; refetch regardless of profile.
		needFetch = true
	case e.Stale(now):
		needFetch = e.profile.RefetchOnMount
	}

	family := key.Family()
	if needFetch {
		metrics.CacheMisses.WithLabelValues(family).Inc()
		s.startFetchLocked(ctx, e)
	} else {
		metrics.CacheHits.WithLabelValues(family).Inc()
	}

	snap := s.snapshotLocked(e)
	s.mu.Unlock()
	return snap
}

// Refetch forces a fetch for a cached key regardless of staleness, unless
// one is already in flight. Returns false when the key is unknown or has no
// registered fetcher.
func (s *Store) Refetch(ctx context.Context, key domain.QueryKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok || e.fetcher == nil || e.status == domain.StatusFetching {
		return ok && e.status == domain.StatusFetching
	}
	s.startFetchLocked(ctx, e)
	return true
}

// Subscribe attaches a listener to a key and bumps its subscriber count,
// disarming any pending GC timer. The returned function detaches the
// listener; when the count reaches zero the GC timer is reset.
func (s *Store) Subscribe(key domain.QueryKey, fn Listener) func() {
	s.mu.Lock()
	ks := key.String()
	e, ok := s.entries[ks]
	if !ok {
		e = &entry{
			key:       key.Clone(),
			status:    domain.StatusIdle,
			listeners: make(map[int]Listener),
		}
		s.entries[ks] = e
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(ks, id) })
	}
}

func (s *Store) unsubscribe(ks string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ks]
	if !ok {
		return
	}
	delete(e.listeners, id)
	if len(e.listeners) > 0 {
		return
	}

	now := s.now()
	gcAt := now.Add(e.profile.GCTime)
	if gcAt.Before(e.staleAt) {
		gcAt = e.staleAt
	}
	e.gcAt = gcAt
	s.armGCLocked(e)
}

// armGCLocked schedules eviction at gcAt. An in-flight fetch is allowed to
// complete and populate the entry first; eviction re-checks at fire time.
func (s *Store) armGCLocked(e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
	}
	wait := e.gcAt.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	ks := e.key.String()
	family := e.key.Family()
	e.gcTimer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		cur, ok := s.entries[ks]
		if !ok || cur != e {
			return
		}
		if len(cur.listeners) > 0 || cur.status == domain.StatusFetching {
			return
		}
		if s.now().Before(cur.gcAt) {
			return
		}
		delete(s.entries, ks)
		metrics.CacheEvictions.WithLabelValues(family).Inc()
	})
}

// Invalidate marks every matching entry stale. Entries with active
// subscribers are refetched immediately; the rest wait for their next
// Ensure. Returns the number of entries touched.
func (s *Store) Invalidate(ctx context.Context, pattern domain.KeyPattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	touched := 0
	for _, e := range s.entries {
		if !pattern.Matches(e.key) {
			continue
		}
		touched++
		e.epoch++
		if e.staleAt.After(now) {
			e.staleAt = now
		}
		// An in-flight fetch started before this invalidation; its commit
		// sees the epoch bump and re-triggers or stays stale.
		if len(e.listeners) > 0 && e.fetcher != nil && e.status != domain.StatusFetching {
			s.startFetchLocked(ctx, e)
		}
	}
	return touched
}

// RefetchOnReconnect sweeps subscribed entries whose profile opts in and
// refetches them. This is the recovery pass after an Offline -> Online
// transition, not a blanket invalidation.
func (s *Store) RefetchOnReconnect(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	refetched := 0
	for _, e := range s.entries {
		if len(e.listeners) == 0 || !e.profile.RefetchOnReconnect {
			continue
		}
		if e.fetcher == nil || e.status == domain.StatusFetching {
			continue
		}
		s.startFetchLocked(ctx, e)
		refetched++
	}
	return refetched
}

// Patch rewrites a cached entry's data as a single synchronous step and
// returns the snapshot taken immediately before the change, for rollback.
// apply must build a new value; the previous one must stay untouched.
func (s *Store) Patch(key domain.QueryKey, apply func(old any) any) (domain.CacheEntry, bool) {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		return domain.CacheEntry{}, false
	}
	prev := s.snapshotLocked(e)
	e.data = apply(e.data)
	snap := s.snapshotLocked(e)
	listeners := s.listenersLocked(e)
	s.mu.Unlock()

	notify(listeners, snap)
	return prev, true
}

// Restore puts an entry back to a previously captured snapshot. Used for
// optimistic rollback; unconditional on what happened in between.
func (s *Store) Restore(key domain.QueryKey, prev domain.CacheEntry) bool {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e.data = prev.Data
	e.fetchedAt = prev.FetchedAt
	e.staleAt = prev.StaleAt
	e.gcAt = prev.GCAt
	e.status = prev.Status
	e.errInfo = prev.ErrorInfo
	snap := s.snapshotLocked(e)
	listeners := s.listenersLocked(e)
	s.mu.Unlock()

	notify(listeners, snap)
	return true
}

// Stats summarizes the store for the debug endpoint.
type Stats struct {
	Entries    int `json:"entries"`
	Subscribed int `json:"subscribed"`
	Fetching   int `json:"fetching"`
}

// Stats returns current store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Entries: len(s.entries)}
	for _, e := range s.entries {
		if len(e.listeners) > 0 {
			st.Subscribed++
		}
		if e.status == domain.StatusFetching {
			st.Fetching++
		}
	}
	return st
}

// Close stops all GC timers and drops pending work. In-flight fetches finish
// but their results are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, e := range s.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
			e.gcTimer = nil
		}
	}
}

// startFetchLocked transitions the entry to fetching and launches the fetch.
// Callers hold the lock. The fetch runs detached from the caller's
// cancellation so a completed fetch can still populate the cache after its
// last subscriber detaches.
func (s *Store) startFetchLocked(ctx context.Context, e *entry) {
	if s.closed || e.status == domain.StatusFetching {
		return
	}
	e.status = domain.StatusFetching
	fetcher := e.fetcher
	family := e.key.Family()
	startEpoch := e.epoch
	fetchCtx := context.WithoutCancel(ctx)

	go func() {
		// Announce the fetching state before doing the work.
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		snap := s.snapshotLocked(e)
		listeners := s.listenersLocked(e)
		s.mu.Unlock()
		notify(listeners, snap)

		start := time.Now()
		data, err := fetcher(fetchCtx)
		metrics.FetchLatency.WithLabelValues(family).Observe(time.Since(start).Seconds())

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		now := s.now()
		if err != nil {
			// Previous data is preserved: the UI keeps last-known-good
			// content next to the error.
			var ce *domain.ClassifiedError
			if !errors.As(err, &ce) {
				ce = domain.NewClassifiedError(domain.ErrUnknown, err.Error())
			}
			e.status = domain.StatusError
			e.errInfo = ce
			metrics.Fetches.WithLabelValues(family, "error").Inc()
		} else {
			e.data = data
			e.fetchedAt = now
			e.dataEpoch = startEpoch
			if startEpoch == e.epoch {
				e.staleAt = now.Add(e.profile.StaleTime)
			} else {
				// Invalidated while this fetch was in flight; the result
				// predates the mutation commit and stays stale.
				e.staleAt = now
			}
			e.gcAt = e.staleAt.Add(e.profile.GCTime)
			e.status = domain.StatusSuccess
			e.errInfo = nil
			metrics.Fetches.WithLabelValues(family, "success").Inc()
		}
		if startEpoch != e.epoch && len(e.listeners) > 0 && e.fetcher != nil {
			s.startFetchLocked(fetchCtx, e)
		}
		if len(e.listeners) == 0 {
			if e.gcAt.IsZero() {
				e.gcAt = now.Add(e.profile.GCTime)
			}
			s.armGCLocked(e)
		}
		snap = s.snapshotLocked(e)
		listeners = s.listenersLocked(e)
		s.mu.Unlock()

		notify(listeners, snap)
	}()
}

func (s *Store) snapshotLocked(e *entry) domain.CacheEntry {
	return domain.CacheEntry{
		Key:         e.key.Clone(),
		Data:        e.data,
		FetchedAt:   e.fetchedAt,
		StaleAt:     e.staleAt,
		GCAt:        e.gcAt,
		Status:      e.status,
		ErrorInfo:   e.errInfo,
		Subscribers: len(e.listeners),
	}
}

func (s *Store) listenersLocked(e *entry) []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		out = append(out, fn)
	}
	return out
}

// notify runs listener callbacks outside the store lock; listeners may call
// back into the store.
func notify(listeners []Listener, snap domain.CacheEntry) {
	for _, fn := range listeners {
		fn(snap)
	}
}
