package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zeladoria/zela/internal/intake"
	"github.com/zeladoria/zela/internal/normalize"
)

// maxWebhookBody caps the inbound webhook payload. Media arrives either
// inline base64 or as a URL, so 24 MiB leaves headroom over the media cap.
const maxWebhookBody = 24 << 20

// InboundEngine is the intake surface the webhook hands events to.
type InboundEngine interface {
	HandleInbound(ev intake.InboundEvent)
}

// WebhookHandler receives WhatsApp gateway callbacks. It normalizes the
// payload, enqueues it for the sender and acknowledges immediately; the
// gateway never waits on AI or ticket calls.
type WebhookHandler struct {
	engine     InboundEngine
	normalizer *normalize.Normalizer
	secret     string
	logger     *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, engine InboundEngine, normalizer *normalize.Normalizer, secret string) *WebhookHandler {
	return &WebhookHandler{
		engine:     engine,
		normalizer: normalizer,
		secret:     secret,
		logger:     log.With(slog.String("handler", "whatsapp_webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/whatsapp", h.HandleInbound)
}

func (h *WebhookHandler) HandleInbound(c echo.Context) error {
	if h.secret != "" {
		got := c.Request().Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
		}
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	ev, err := h.normalizer.Normalize(c.Request().Context(), payload)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedPayload) {
			h.logger.Warn("unsupported webhook payload", slog.Any("error", err))
			// Acknowledge so the gateway does not retry what we cannot parse.
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	h.engine.HandleInbound(ev)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
