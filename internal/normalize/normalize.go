// Package normalize converts provider-specific webhook payloads into the
// canonical intake.InboundEvent consumed by the state machine.
package normalize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zeladoria/zela/internal/intake"
)

// ErrUnsupportedPayload marks inbound payloads that cannot be parsed at all.
// Unsupported but parseable message types are NOT errors; they come back as
// KindDocument so the engine can answer with a "can't process this" reply.
var ErrUnsupportedPayload = errors.New("unsupported inbound payload")

// MaxMediaBytes caps inbound media downloads.
const MaxMediaBytes int64 = 16 << 20

// rawMessage mirrors the gateway's webhook JSON. Media arrives either inline
// as base64 or as a short-lived download URL.
type rawMessage struct {
	From      string    `json:"from" validate:"required"`
	ID        string    `json:"id"`
	Type      string    `json:"type" validate:"required"`
	Timestamp int64     `json:"timestamp"`
	Text      *rawText  `json:"text,omitempty"`
	Image     *rawMedia `json:"image,omitempty"`
	Audio     *rawMedia `json:"audio,omitempty"`
	Video     *rawMedia `json:"video,omitempty"`
	Sticker   *rawMedia `json:"sticker,omitempty"`
	Document  *rawMedia `json:"document,omitempty"`
	Location  *rawGeo   `json:"location,omitempty"`
}

type rawText struct {
	Body string `json:"body"`
}

type rawMedia struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type rawGeo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Normalizer parses webhook payloads and downloads referenced media.
type Normalizer struct {
	logger   *slog.Logger
	client   *http.Client
	validate *validator.Validate
}

// New creates a Normalizer.
func New(log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		logger:   log.With(slog.String("service", "normalizer")),
		client:   &http.Client{Timeout: 60 * time.Second},
		validate: validator.New(),
	}
}

// Normalize converts a raw webhook payload into an InboundEvent. Unparseable
// payloads return ErrUnsupportedPayload; unknown message types return a
// KindDocument event instead of an error.
func (n *Normalizer) Normalize(ctx context.Context, payload []byte) (intake.InboundEvent, error) {
	var raw rawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return intake.InboundEvent{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}
	if err := n.validate.Struct(raw); err != nil {
		return intake.InboundEvent{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}

	ev := intake.InboundEvent{
		SenderID:          strings.TrimSpace(raw.From),
		ProviderMessageID: strings.TrimSpace(raw.ID),
		ReceivedAt:        time.Now().UTC(),
	}
	if raw.Timestamp > 0 {
		ev.ReceivedAt = time.Unix(raw.Timestamp, 0).UTC()
	}

	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case "text":
		ev.Kind = intake.KindText
		if raw.Text != nil {
			ev.Text = strings.TrimSpace(raw.Text.Body)
		}
	case "image":
		ev.Kind = intake.KindImage
		n.attachMedia(ctx, &ev, raw.Image)
	case "audio", "voice", "ptt":
		ev.Kind = intake.KindAudio
		n.attachMedia(ctx, &ev, raw.Audio)
	case "video":
		ev.Kind = intake.KindVideo
		n.attachMedia(ctx, &ev, raw.Video)
	case "sticker":
		ev.Kind = intake.KindSticker
		n.attachMedia(ctx, &ev, raw.Sticker)
	case "location":
		// A location without usable coordinates would fill the location
		// slot with (0,0); treat it like any other unprocessable message.
		if raw.Location == nil || (raw.Location.Latitude == 0 && raw.Location.Longitude == 0) {
			ev.Kind = intake.KindDocument
			return ev, nil
		}
		ev.Kind = intake.KindLocation
		ev.Latitude = raw.Location.Latitude
		ev.Longitude = raw.Location.Longitude
		ev.Text = strings.TrimSpace(raw.Location.Address)
	default:
		// Contacts, polls, reactions and anything future land here.
		ev.Kind = intake.KindDocument
		n.attachMedia(ctx, &ev, raw.Document)
	}
	return ev, nil
}

// attachMedia fills media bytes from inline base64 or a download URL.
// Transient download failures leave the event without bytes; the engine
// treats that the same as an unusable attachment.
func (n *Normalizer) attachMedia(ctx context.Context, ev *intake.InboundEvent, media *rawMedia) {
	if media == nil {
		return
	}
	ev.MimeType = strings.TrimSpace(media.MimeType)
	ev.Caption = strings.TrimSpace(media.Caption)
	if media.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(media.Data)
		if err != nil {
			n.logger.Warn("inline media decode failed", slog.Any("error", err))
			return
		}
		ev.Media = decoded
		return
	}
	if media.URL == "" {
		return
	}
	data, mime, err := n.download(ctx, media.URL)
	if err != nil {
		n.logger.Warn("media download failed", slog.String("url", media.URL), slog.Any("error", err))
		return
	}
	ev.Media = data
	if ev.MimeType == "" {
		ev.MimeType = mime
	}
}

func (n *Normalizer) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("download media status: %d", resp.StatusCode)
	}
	limited := &io.LimitedReader{R: resp.Body, N: MaxMediaBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > MaxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", MaxMediaBytes)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}
