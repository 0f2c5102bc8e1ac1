package handler

import (
	"io"
	"net/http"

	"creatorchat-service/internal/billing"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Stripe recommends bounding webhook bodies at 64 KiB.
const maxWebhookBody = 65536

// WebhookHandler consumes asynchronous payment-processor events and
// reconciles them into the entitlement store.
type WebhookHandler struct {
	stripe     *billing.StripeClient
	reconciler *billing.Reconciler
}

// NewWebhookHandler wires the webhook endpoint's collaborators.
func NewWebhookHandler(stripe *billing.StripeClient, reconciler *billing.Reconciler) *WebhookHandler {
	return &WebhookHandler{stripe: stripe, reconciler: reconciler}
}

// HandleWebhook serves POST /api/stripe/webhook. The signature is
// verified before any event content is trusted; a signature failure is
// a 400 with no state mutation. A reconciliation failure is a 500 so
// the processor redelivers. Everything else — including events with
// missing metadata and unknown event types — is acknowledged with 200
// so the processor does not retry what can never succeed.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	log := logger.FromContext(c)

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		prometheus.RecordWebhookEvent("unknown", "invalid_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing signature"})
	}

	payload, err := io.ReadAll(http.MaxBytesReader(nil, c.Request().Body, maxWebhookBody))
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		prometheus.RecordWebhookEvent("unknown", "invalid_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	event, err := h.stripe.ConstructWebhookEvent(payload, signature)
	if err != nil {
		log.Warn("Webhook signature verification failed", zap.Error(err))
		prometheus.RecordWebhookEvent("unknown", "invalid_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	eventType := string(event.Type)

	parsed, err := billing.ParseEvent(event)
	if err != nil {
		// A verified event whose payload does not decode will never
		// decode on redelivery either; acknowledge and move on.
		log.Error("Failed to decode webhook event", zap.String("type", eventType), zap.Error(err))
		prometheus.RecordWebhookEvent(eventType, "skipped")
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	if parsed == nil {
		log.Debug("Webhook event skipped", zap.String("type", eventType))
		prometheus.RecordWebhookEvent(eventType, "skipped")
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	if err := h.reconciler.Apply(c.Request().Context(), parsed); err != nil {
		log.Error("Webhook reconciliation failed", zap.String("type", eventType), zap.Error(err))
		prometheus.RecordWebhookEvent(eventType, "failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
	}

	prometheus.RecordWebhookEvent(eventType, "applied")
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
