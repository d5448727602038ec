package domain

import "time"

// CacheStatus is the lifecycle state of a cache entry.
type CacheStatus string

const (
	StatusIdle     CacheStatus = "idle"
	StatusFetching CacheStatus = "fetching"
	StatusSuccess  CacheStatus = "success"
	StatusError    CacheStatus = "error"
)

// CacheEntry is a point-in-time view of one cached query. Invariants:
// StaleAt >= FetchedAt and GCAt >= StaleAt. An entry with zero subscribers
// past GCAt is eligible for removal.
type CacheEntry struct {
	Key         QueryKey
	Data        any
	FetchedAt   time.Time
	StaleAt     time.Time
	GCAt        time.Time
	Status      CacheStatus
	ErrorInfo   *ClassifiedError
	Subscribers int
}

// Stale reports whether the entry needs revalidation at the given instant.
func (e CacheEntry) Stale(now time.Time) bool {
	return !now.Before(e.StaleAt)
}

// Collectible reports whether the entry may be garbage collected.
func (e CacheEntry) Collectible(now time.Time) bool {
	return e.Subscribers == 0 && !now.Before(e.GCAt)
}

// HasData reports whether the entry carries a committed result. Data survives
// fetch errors so callers can show last-known-good content.
func (e CacheEntry) HasData() bool {
	return e.Data != nil
}
