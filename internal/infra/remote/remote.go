// Package remote talks to the resource backend. It owns the transport, the
// deadline guard, the error classifier, and the retry policy; everything
// above it only sees ClassifiedError values.
package remote

import (
	"context"
	"encoding/json"
)

// Query describes a read against the backend. The engine is agnostic to the
// backend's schema; Resource is a path-like name and Params narrow the scope.
type Query struct {
	Resource string
	Params   map[string]string
}

// Command describes a write against the backend.
type Command struct {
	Name     string
	Resource string
	Payload  json.RawMessage
}

// Source is the remote data source consumed by the engine.
type Source interface {
	Fetch(ctx context.Context, q Query) (json.RawMessage, error)
	Mutate(ctx context.Context, c Command) (json.RawMessage, error)
}
