package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func standardProfile() domain.Profile {
	return domain.Profile{
		Name:               domain.ProfileStandard,
		StaleTime:          30 * time.Second,
		GCTime:             5 * time.Minute,
		RefetchOnReconnect: true,
		RefetchOnMount:     true,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func waitForStatus(t *testing.T, s *Store, key domain.QueryKey, status domain.CacheStatus) {
	t.Helper()
	waitFor(t, func() bool {
		e, ok := s.Get(key)
		return ok && e.Status == status
	})
}

func TestEnsureFetchesOnceWhileFresh(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	defer s.Close()

	key := domain.K("teams", "byEvent", "E1")
	var fetches int32
	fetcher := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&fetches, 1)
		return "team-list", nil
	}

	// t=0: miss, one fetch
	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	// t=10s: fresh, served from cache without refetch
	clock.Advance(10 * time.Second)
	snap := s.Ensure(context.Background(), key, standardProfile(), fetcher)
	if snap.Data != "team-list" {
		t.Errorf("Expected cached data, got %v", snap.Data)
	}
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("Expected 1 fetch at t=10s, got %d", got)
	}

	// t=31s: stale, exactly one refetch; stale data still served immediately
	clock.Advance(21 * time.Second)
	snap = s.Ensure(context.Background(), key, standardProfile(), fetcher)
	if snap.Data != "team-list" {
		t.Error("Stale data should be served while revalidating")
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&fetches) == 2 })
	waitForStatus(t, s, key, domain.StatusSuccess)
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Errorf("Expected exactly 2 fetches, got %d", got)
	}
}

func TestEnsureDedupsConcurrentFetches(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("events", "list")
	var fetches int32
	release := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return "events", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Ensure(context.Background(), key, standardProfile(), fetcher)
		}()
	}
	wg.Wait()

	waitForStatus(t, s, key, domain.StatusFetching)
	close(release)
	waitForStatus(t, s, key, domain.StatusSuccess)

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("Expected exactly 1 underlying fetch for 10 concurrent Ensure calls, got %d", got)
	}
}

func TestErrorPreservesLastKnownGoodData(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	defer s.Close()

	key := domain.K("submissions", "byEvent", "E1")
	var failing atomic.Bool
	fetcher := func(ctx context.Context) (any, error) {
		if failing.Load() {
			return nil, domain.NewClassifiedError(domain.ErrServer, "boom")
		}
		return "subs-v1", nil
	}

	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	failing.Store(true)
	clock.Advance(time.Minute)
	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusError)

	snap, _ := s.Get(key)
	if snap.Data != "subs-v1" {
		t.Errorf("Expected last-known-good data preserved on error, got %v", snap.Data)
	}
	if snap.ErrorInfo == nil || snap.ErrorInfo.Kind != domain.ErrServer {
		t.Errorf("Expected server error info, got %v", snap.ErrorInfo)
	}
}

func TestInvalidateRefetchesSubscribedEntries(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("teams", "byEvent", "E1")
	var fetches int32
	fetcher := func(ctx context.Context) (any, error) {
		return int(atomic.AddInt32(&fetches, 1)), nil
	}

	unsub := s.Subscribe(key, func(domain.CacheEntry) {})
	defer unsub()
	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	touched := s.Invalidate(context.Background(), domain.KeyPattern{Prefix: domain.K("teams", "byEvent", "E1")})
	if touched != 1 {
		t.Errorf("Expected 1 entry invalidated, got %d", touched)
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&fetches) == 2 })
	waitFor(t, func() bool {
		snap, _ := s.Get(key)
		return snap.Status == domain.StatusSuccess && snap.Data == 2
	})
}

func TestInvalidateMarksUnsubscribedEntriesStale(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	defer s.Close()

	key := domain.K("teams", "seekers", "E1")
	var fetches int32
	fetcher := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&fetches, 1)
		return "seekers", nil
	}

	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	s.Invalidate(context.Background(), domain.KeyPattern{Prefix: domain.K("teams")})
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("Expected no immediate refetch without subscribers, got %d fetches", got)
	}

	// Next Ensure sees the stale mark and refetches
	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitFor(t, func() bool { return atomic.LoadInt32(&fetches) == 2 })
}

func TestSubscriberCountAndGC(t *testing.T) {
	s := New()
	defer s.Close()

	profile := domain.Profile{
		Name:      domain.ProfileStandard,
		StaleTime: 0,
		GCTime:    20 * time.Millisecond,
	}
	key := domain.K("judges", "byEvent", "E1")
	fetcher := func(ctx context.Context) (any, error) { return "judges", nil }

	unsub := s.Subscribe(key, func(domain.CacheEntry) {})
	s.Ensure(context.Background(), key, profile, fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	snap, _ := s.Get(key)
	if snap.Subscribers != 1 {
		t.Errorf("Expected 1 subscriber, got %d", snap.Subscribers)
	}

	unsub()
	waitFor(t, func() bool {
		_, ok := s.Get(key)
		return !ok
	})
}

func TestResubscribeDisarmsGC(t *testing.T) {
	s := New()
	defer s.Close()

	profile := domain.Profile{
		Name:      domain.ProfileStandard,
		StaleTime: time.Hour,
		GCTime:    30 * time.Millisecond,
	}
	key := domain.K("events", "detail", "E1")
	fetcher := func(ctx context.Context) (any, error) { return "event", nil }

	s.Ensure(context.Background(), key, profile, fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)

	unsub := s.Subscribe(key, func(domain.CacheEntry) {})
	unsub()
	// Resubscribe before the GC timer fires
	unsub2 := s.Subscribe(key, func(domain.CacheEntry) {})
	defer unsub2()

	time.Sleep(100 * time.Millisecond)
	if _, ok := s.Get(key); !ok {
		t.Error("Entry with an active subscriber should not be collected")
	}
}

func TestRefetchOnReconnectSweepsOptedInSubscribedEntries(t *testing.T) {
	s := New()
	defer s.Close()

	var reconnectFetches, staticFetches int32

	reconnectKey := domain.K("teams", "my")
	unsub := s.Subscribe(reconnectKey, func(domain.CacheEntry) {})
	defer unsub()
	s.Ensure(context.Background(), reconnectKey, standardProfile(), func(ctx context.Context) (any, error) {
		atomic.AddInt32(&reconnectFetches, 1)
		return "mine", nil
	})

	staticKey := domain.K("events", "detail", "E1")
	staticProfile := domain.Profile{Name: domain.ProfileStatic, StaleTime: time.Hour, GCTime: time.Hour}
	unsub2 := s.Subscribe(staticKey, func(domain.CacheEntry) {})
	defer unsub2()
	s.Ensure(context.Background(), staticKey, staticProfile, func(ctx context.Context) (any, error) {
		atomic.AddInt32(&staticFetches, 1)
		return "event", nil
	})

	waitForStatus(t, s, reconnectKey, domain.StatusSuccess)
	waitForStatus(t, s, staticKey, domain.StatusSuccess)

	refetched := s.RefetchOnReconnect(context.Background())
	if refetched != 1 {
		t.Errorf("Expected 1 entry swept on reconnect, got %d", refetched)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&reconnectFetches) == 2 })
	if got := atomic.LoadInt32(&staticFetches); got != 1 {
		t.Errorf("Static profile should not refetch on reconnect, got %d fetches", got)
	}
}

func TestPatchAndRestore(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("teams", "byEvent", "E1")
	s.Ensure(context.Background(), key, standardProfile(), func(ctx context.Context) (any, error) {
		return []string{"alpha"}, nil
	})
	waitForStatus(t, s, key, domain.StatusSuccess)

	prev, ok := s.Patch(key, func(old any) any {
		teams := old.([]string)
		out := make([]string, len(teams), len(teams)+1)
		copy(out, teams)
		return append(out, "beta")
	})
	if !ok {
		t.Fatal("Patch should succeed on a cached entry")
	}

	snap, _ := s.Get(key)
	if got := snap.Data.([]string); len(got) != 2 || got[1] != "beta" {
		t.Errorf("Expected optimistic patch visible, got %v", got)
	}

	if !s.Restore(key, prev) {
		t.Fatal("Restore should succeed")
	}
	snap, _ = s.Get(key)
	if got := snap.Data.([]string); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("Expected restored data, got %v", got)
	}
}

func TestSubscriberNotifiedOnCommit(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("notifications", "list")
	var mu sync.Mutex
	var seen []domain.CacheStatus
	unsub := s.Subscribe(key, func(e domain.CacheEntry) {
		mu.Lock()
		seen = append(seen, e.Status)
		mu.Unlock()
	})
	defer unsub()

	s.Ensure(context.Background(), key, standardProfile(), func(ctx context.Context) (any, error) {
		return "unread", nil
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, st := range seen {
			if st == domain.StatusSuccess {
				return true
			}
		}
		return false
	})
}

func TestFetcherErrorsClassifiedAsUnknownFallback(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("user", "profile")
	s.Ensure(context.Background(), key, standardProfile(), func(ctx context.Context) (any, error) {
		return nil, errors.New("unclassified mess")
	})
	waitForStatus(t, s, key, domain.StatusError)

	snap, _ := s.Get(key)
	if snap.ErrorInfo == nil || snap.ErrorInfo.Kind != domain.ErrUnknown {
		t.Errorf("Expected Unknown fallback classification, got %v", snap.ErrorInfo)
	}
}

func TestInvalidateDuringFetchRefetchesAfterCommit(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("teams", "byEvent", "E1")
	var fetches int32
	release := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			<-release
			return "pre-mutation", nil
		}
		return "post-mutation", nil
	}

	unsub := s.Subscribe(key, func(domain.CacheEntry) {})
	defer unsub()
	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusFetching)

	// Mutation commits while the pre-mutation fetch is still in flight
	touched := s.Invalidate(context.Background(), domain.KeyPattern{Prefix: key})
	if touched != 1 {
		t.Fatalf("Expected 1 entry invalidated, got %d", touched)
	}

	close(release)

	// The outdated commit must not satisfy the invalidation; a follow-up
	// fetch delivers post-commit data
	waitFor(t, func() bool {
		snap, _ := s.Get(key)
		return snap.Status == domain.StatusSuccess && snap.Data == "post-mutation"
	})
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Errorf("Expected a follow-up fetch after the stale commit, got %d fetches", got)
	}
}

func TestInvalidateDuringFetchUnsubscribedStaysStale(t *testing.T) {
	s := New()
	defer s.Close()

	key := domain.K("submissions", "byTeam", "T1")
	var fetches int32
	release := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			<-release
			return "v1", nil
		}
		return "v2", nil
	}

	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitForStatus(t, s, key, domain.StatusFetching)
	s.Invalidate(context.Background(), domain.KeyPattern{Prefix: key})
	close(release)
	waitForStatus(t, s, key, domain.StatusSuccess)

	// No subscribers, so no immediate refetch, but the outdated result is
	// marked stale instead of fresh
	snap, _ := s.Get(key)
	if snap.Data != "v1" {
		t.Fatalf("Expected the in-flight result committed, got %v", snap.Data)
	}
	if !snap.Stale(time.Now()) {
		t.Error("Data fetched before the invalidation must not be fresh")
	}

	s.Ensure(context.Background(), key, standardProfile(), fetcher)
	waitFor(t, func() bool {
		snap, _ := s.Get(key)
		return snap.Data == "v2"
	})
}

func TestInvalidatedEntryRefetchesOnEnsureDespiteProfile(t *testing.T) {
	s := New()
	defer s.Close()

	// Static profile: never refetches on mount, long stale time
	profile := domain.Profile{
		Name:      domain.ProfileStatic,
		StaleTime: time.Hour,
		GCTime:    24 * time.Hour,
	}
	key := domain.K("events", "detail", "E1")
	var fetches int32
	fetcher := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			return "old-detail", nil
		}
		return "new-detail", nil
	}

	s.Ensure(context.Background(), key, profile, fetcher)
	waitForStatus(t, s, key, domain.StatusSuccess)
	s.Ensure(context.Background(), key, profile, fetcher)
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Fatalf("Fresh static entry should not refetch, got %d fetches", got)
	}

	if touched := s.Invalidate(context.Background(), domain.KeyPattern{Prefix: key}); touched != 1 {
		t.Fatalf("Expected 1 entry invalidated, got %d", touched)
	}

	// Explicit invalidation overrides the profile gate on the next read
	s.Ensure(context.Background(), key, profile, fetcher)
	waitFor(t, func() bool {
		snap, _ := s.Get(key)
		return snap.Data == "new-detail"
	})
}

func TestNeverSubscribedEntryCollectedAfterGC(t *testing.T) {
	s := New()
	defer s.Close()

	profile := domain.Profile{
		Name:      domain.ProfileStandard,
		StaleTime: 0,
		GCTime:    50 * time.Millisecond,
	}
	key := domain.K("events", "detail", "E9")
	s.Ensure(context.Background(), key, profile, func(ctx context.Context) (any, error) {
		return "event", nil
	})
	waitForStatus(t, s, key, domain.StatusSuccess)

	waitFor(t, func() bool {
		_, ok := s.Get(key)
		return !ok
	})
}
