package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MutationStatus is the lifecycle state of a pending write.
type MutationStatus string

const (
	MutationApplying   MutationStatus = "applying"
	MutationCommitted  MutationStatus = "committed"
	MutationRolledBack MutationStatus = "rolledBack"
)

// PendingMutation is a write captured either in flight or queued for offline
// replay. It is JSON-serializable so the offline queue can persist it through
// the key/value store. Context carries the scope identifiers (eventId, userId,
// teamId) the invalidation rules expand against on replay.
type PendingMutation struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Resource  string            `json:"resource"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Status    MutationStatus    `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewPendingMutation creates a mutation record in the applying state.
func NewPendingMutation(name, resource string, payload json.RawMessage, mctx map[string]string) PendingMutation {
	return PendingMutation{
		ID:        uuid.NewString(),
		Name:      name,
		Resource:  resource,
		Payload:   payload,
		Context:   mctx,
		Status:    MutationApplying,
		CreatedAt: time.Now().UTC(),
	}
}
