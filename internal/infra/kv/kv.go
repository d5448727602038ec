// Package kv provides the minimal durable key/value contract the engine
// persists through. The offline mutation queue and any durable cache seed go
// through this interface so any store (memory, redis, postgres) can back it.
package kv

import "context"

// Store is the key/value contract. Values are opaque strings; callers own
// serialization and any capacity bounds on what they store.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
