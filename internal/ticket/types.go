// Package ticket defines the contract with the demand-management backend
// that owns tickets, attachments and notifications. The intake engine only
// ever creates a ticket once per session and consults status by protocol.
package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/zeladoria/zela/internal/session"
)

// ErrNotFound is returned when no ticket matches a protocol number.
var ErrNotFound = errors.New("ticket not found")

// CreateInput carries the completed slots for materialization.
type CreateInput struct {
	Description        string                  `json:"description"`
	Category           string                  `json:"category,omitempty"`
	Address            string                  `json:"address,omitempty"`
	Neighborhood       string                  `json:"neighborhood,omitempty"`
	Urgency            string                  `json:"urgency,omitempty"`
	Coordinates        *session.Coordinates    `json:"coordinates,omitempty"`
	Attachments        []session.AttachmentRef `json:"attachments,omitempty"`
	RequesterChannelID string                  `json:"requester_channel_id"`
	// IdempotencyKey is stable per session so a retried create cannot
	// produce a second ticket.
	IdempotencyKey string `json:"-"`
}

// Ref identifies a created ticket.
type Ref struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
}

// Status is the queryable state of an existing ticket.
type Status struct {
	Protocol  string    `json:"protocol"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Materializer is the external collaborator surface the engine depends on.
type Materializer interface {
	// Create materializes one ticket from completed slots.
	Create(ctx context.Context, input CreateInput) (Ref, error)
	// GetByProtocol looks a ticket up for the consultation flow.
	GetByProtocol(ctx context.Context, protocol string) (Status, error)
	// StageAttachment hands media bytes to the backend and returns the
	// reference the session keeps in its photo slot.
	StageAttachment(ctx context.Context, media []byte, mime string) (session.AttachmentRef, error)
}
