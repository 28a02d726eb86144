package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeladoria/zela/internal/session"
)

// Client talks to the demand-management backend REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient builds a backend client.
func NewClient(log *slog.Logger, baseURL, apiKey string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log.With(slog.String("service", "ticket_client")),
	}
}

func (c *Client) Create(ctx context.Context, input CreateInput) (Ref, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return Ref{}, fmt.Errorf("encode ticket: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/demands", bytes.NewReader(body))
	if err != nil {
		return Ref{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if input.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", input.IdempotencyKey)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return Ref{}, fmt.Errorf("create ticket: %w", err)
	}
	defer drainClose(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Ref{}, fmt.Errorf("create ticket status: %d", resp.StatusCode)
	}
	var ref Ref
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return Ref{}, fmt.Errorf("decode ticket: %w", err)
	}
	return ref, nil
}

func (c *Client) GetByProtocol(ctx context.Context, protocol string) (Status, error) {
	endpoint := c.baseURL + "/api/demands/protocol/" + url.PathEscape(strings.TrimSpace(protocol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("get ticket: %w", err)
	}
	defer drainClose(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return Status{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("get ticket status: %d", resp.StatusCode)
	}
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, fmt.Errorf("decode ticket status: %w", err)
	}
	return status, nil
}

func (c *Client) StageAttachment(ctx context.Context, media []byte, mime string) (session.AttachmentRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/attachments", bytes.NewReader(media))
	if err != nil {
		return session.AttachmentRef{}, fmt.Errorf("build request: %w", err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mime)
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return session.AttachmentRef{}, fmt.Errorf("stage attachment: %w", err)
	}
	defer drainClose(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return session.AttachmentRef{}, fmt.Errorf("stage attachment status: %d", resp.StatusCode)
	}
	var ref session.AttachmentRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return session.AttachmentRef{}, fmt.Errorf("decode attachment: %w", err)
	}
	if ref.Mime == "" {
		ref.Mime = mime
	}
	return ref, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
