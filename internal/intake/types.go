// Package intake implements the WhatsApp conversational intake engine: a
// per-citizen state machine that collects a problem description, a location,
// and a photo, then materializes a demand ticket exactly once per session.
package intake

import (
	"strings"
	"time"
)

// EventKind classifies a normalized inbound message.
type EventKind string

const (
	KindText     EventKind = "text"
	KindAudio    EventKind = "audio"
	KindImage    EventKind = "image"
	KindVideo    EventKind = "video"
	KindLocation EventKind = "location"
	KindSticker  EventKind = "sticker"
	KindDocument EventKind = "document"
)

// HasMedia reports whether events of this kind carry a binary payload.
func (k EventKind) HasMedia() bool {
	switch k {
	case KindAudio, KindImage, KindVideo, KindSticker, KindDocument:
		return true
	default:
		return false
	}
}

// InboundEvent is one normalized provider message. It is immutable once built.
type InboundEvent struct {
	SenderID          string
	Kind              EventKind
	Text              string
	Media             []byte
	MimeType          string
	Caption           string
	Latitude          float64
	Longitude         float64
	ProviderMessageID string
	ReceivedAt        time.Time
}

// Content returns the best textual content of the event: body text first,
// then the media caption.
func (e InboundEvent) Content() string {
	if text := strings.TrimSpace(e.Text); text != "" {
		return text
	}
	return strings.TrimSpace(e.Caption)
}
