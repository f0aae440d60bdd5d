package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/application"
)

// maxWebhookBody caps the raw payload read from the processor.
const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives the payment processor's event stream.
type WebhookHandler struct {
	processor adapter.Processor
	service   *application.WebhookService
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor adapter.Processor, service *application.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, service: service, logger: logger}
}

// RegisterRoutes registers the webhook endpoint. The route is unauthenticated;
// the signature check is the authentication.
func (h *WebhookHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhooks/stripe", h.HandleWebhook)
}

// HandleWebhook handles POST /webhooks/stripe. It returns 400 only on
// signature failure; processing no-ops (unknown type, purchase not found,
// idempotent replay) are 200 so the processor stops redelivering.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	start := time.Now()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		webhookEventsTotal.WithLabelValues("unreadable", "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	event, err := h.processor.ConstructWebhookEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		webhookEventsTotal.WithLabelValues("invalid_signature", "rejected").Inc()
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.service.HandleEvent(c.Request.Context(), event); err != nil {
		webhookEventsTotal.WithLabelValues(string(event.Type), "error").Inc()
		webhookDuration.Observe(time.Since(start).Seconds())
		h.logger.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.RawType),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	webhookEventsTotal.WithLabelValues(string(event.Type), "ok").Inc()
	webhookDuration.Observe(time.Since(start).Seconds())
	c.JSON(http.StatusOK, gin.H{"received": true})
}
