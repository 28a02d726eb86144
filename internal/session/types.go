// Package session holds per-citizen conversation state and the keyed store
// that is its single source of truth.
package session

import (
	"fmt"
	"strings"
	"time"
)

// Stage is the conversation stage of a session.
type Stage string

const (
	StageIdle                  Stage = "idle"
	StageCollectingDescription Stage = "collecting_description"
	StageCollectingLocation    Stage = "collecting_location"
	StageCollectingPhoto       Stage = "collecting_photo"
	StageAwaitingConfirmation  Stage = "awaiting_confirmation"
	StageConsultingTicket      Stage = "consulting_ticket"
	StageClosed                Stage = "closed"
)

const (
	// MaxLogTurns bounds the conversation log kept as AI context.
	MaxLogTurns = 12
	// MaxRecentReplies bounds the reply ring used by the repetition guard.
	MaxRecentReplies = 5
)

// Coordinates is a GPS point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AttachmentRef references a staged attachment owned by the ticket backend.
type AttachmentRef struct {
	ID   string `json:"id"`
	URL  string `json:"url,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// Slots are the fields collected across a conversation. Description, a
// location (address or coordinates), and at least one photo are required
// before a ticket can be created.
type Slots struct {
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	AddressText  string          `json:"address_text,omitempty"`
	Neighborhood string          `json:"neighborhood,omitempty"`
	Urgency      string          `json:"urgency,omitempty"`
	Coordinates  *Coordinates    `json:"coordinates,omitempty"`
	Photos       []AttachmentRef `json:"photos,omitempty"`
}

// HasLocation reports whether either an address or coordinates are present.
func (s Slots) HasLocation() bool {
	return strings.TrimSpace(s.AddressText) != "" || s.Coordinates != nil
}

// Complete reports whether all required slots are filled.
func (s Slots) Complete() bool {
	return strings.TrimSpace(s.Description) != "" && s.HasLocation() && len(s.Photos) > 0
}

// Role identifies the author of a conversation log turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the bounded conversation log.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the per-sender conversation state. One exists per sender while
// a conversation is open; eviction is the only way out of the store.
type Session struct {
	SenderID       string    `json:"sender_id"`
	Stage          Stage     `json:"stage"`
	Slots          Slots     `json:"slots"`
	Log            []Turn    `json:"log,omitempty"`
	RecentReplies  []string  `json:"recent_replies,omitempty"`
	TicketKey      string    `json:"ticket_key"`
	TurnCount      int       `json:"turn_count"`
	Greeted        bool      `json:"greeted"`
	WarnedIdle     bool      `json:"warned_idle"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// New returns a fresh Idle session for the sender. ticketKey is the
// idempotency key used if this session ever materializes a ticket.
func New(senderID, ticketKey string, now time.Time) Session {
	return Session{
		SenderID:       senderID,
		Stage:          StageIdle,
		TicketKey:      ticketKey,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// AppendTurn records a turn in the conversation log, trimming to MaxLogTurns.
func (s *Session) AppendTurn(role Role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.Log = append(s.Log, Turn{Role: role, Content: content})
	if len(s.Log) > MaxLogTurns {
		s.Log = s.Log[len(s.Log)-MaxLogTurns:]
	}
}

// RememberReply pushes a sent reply onto the recent-reply ring.
func (s *Session) RememberReply(reply string) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	s.RecentReplies = append(s.RecentReplies, reply)
	if len(s.RecentReplies) > MaxRecentReplies {
		s.RecentReplies = s.RecentReplies[len(s.RecentReplies)-MaxRecentReplies:]
	}
}

// ContextSummary renders the conversation log plus collected slots as a
// compact prompt context for the extractor.
func (s Session) ContextSummary() string {
	var b strings.Builder
	if s.Slots.Description != "" {
		fmt.Fprintf(&b, "descricao registrada: %s\n", s.Slots.Description)
	}
	if s.Slots.AddressText != "" {
		fmt.Fprintf(&b, "endereco registrado: %s\n", s.Slots.AddressText)
	}
	if s.Slots.Category != "" {
		fmt.Fprintf(&b, "categoria registrada: %s\n", s.Slots.Category)
	}
	for _, turn := range s.Log {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return strings.TrimSpace(b.String())
}

// Reset clears collected state back to Idle while keeping the session (and
// its greeting flag) alive. Photos are dropped with the rest of the slots.
func (s *Session) Reset(now time.Time) {
	s.Stage = StageIdle
	s.Slots = Slots{}
	s.Log = nil
	s.WarnedIdle = false
	s.LastActivityAt = now
}

// IdleSince returns how long the session has been without activity.
func (s Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}
