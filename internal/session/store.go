package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no session exists for a sender.
var ErrNotFound = errors.New("session not found")

// Store is keyed storage of conversation sessions. Implementations must be
// safe for concurrent use; turn-level serialization per sender is the
// engine's job, not the store's.
type Store interface {
	// Get returns the session for senderID, or ErrNotFound.
	Get(ctx context.Context, senderID string) (Session, error)
	// Put creates or replaces the session keyed by its SenderID.
	Put(ctx context.Context, s Session) error
	// Delete evicts the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, senderID string) error
	// List returns all live sessions, for the idle/TTL sweeper.
	List(ctx context.Context) ([]Session, error)
}
