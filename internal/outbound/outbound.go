// Package outbound dispatches replies back through the messaging gateway.
package outbound

import (
	"bytes"
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
)

// ErrDelivery wraps gateway delivery failures after retries are exhausted.
var ErrDelivery = errors.New("delivery failed")

// Dispatcher is the outbound surface the intake engine depends on.
type Dispatcher interface {
	SendText(ctx context.Context, senderID, text string) error
	SendMedia(ctx context.Context, senderID string, media []byte, mime, caption string) error
}

// GatewaySender posts messages to the WhatsApp gateway REST API.
type GatewaySender struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewGatewaySender builds a sender for the configured gateway.
func NewGatewaySender(log *slog.Logger, baseURL, token string) *GatewaySender {
	if log == nil {
		log = slog.Default()
	}
	return &GatewaySender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log.With(slog.String("service", "gateway_sender")),
	}
}

type outboundPayload struct {
	To      string `json:"to"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Media   string `json:"media,omitempty"`
	Mime    string `json:"mime_type,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func (g *GatewaySender) SendText(ctx context.Context, senderID, text string) error {
	return g.post(ctx, outboundPayload{To: senderID, Type: "text", Text: text})
}

func (g *GatewaySender) SendMedia(ctx context.Context, senderID string, media []byte, mime, caption string) error {
	return g.post(ctx, outboundPayload{
		To:      senderID,
		Type:    "media",
		Media:   base64.StdEncoding.EncodeToString(media),
		Mime:    mime,
		Caption: caption,
	})
}

func (g *GatewaySender) post(ctx context.Context, payload outboundPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

// Retrier wraps a Dispatcher with bounded exponential backoff. State for the
// turn is already committed by the time a send runs, so retries can never
// duplicate a ticket.
type Retrier struct {
	inner    Dispatcher
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// NewRetrier wraps inner with up to attempts tries, doubling backoff each time.
func NewRetrier(log *slog.Logger, inner Dispatcher, attempts int, backoff time.Duration) *Retrier {
	if log == nil {
		log = slog.Default()
	}
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Retrier{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
		logger:   log.With(slog.String("service", "outbound_retrier")),
	}
}

func (r *Retrier) SendText(ctx context.Context, senderID, text string) error {
	return r.retry(ctx, func() error { return r.inner.SendText(ctx, senderID, text) })
}

func (r *Retrier) SendMedia(ctx context.Context, senderID string, media []byte, mime, caption string) error {
	return r.retry(ctx, func() error { return r.inner.SendMedia(ctx, senderID, media, mime, caption) })
}

func (r *Retrier) retry(ctx context.Context, send func() error) error {
	delay := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = send()
		if lastErr == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Warn("send failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
