package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appent "github.com/govcon/backend/internal/application/entitlement"
)

// Stripe webhook payloads are small; anything larger is rejected outright
const maxWebhookPayloadSize = 65536

// WebhookHandler receives payment-provider webhooks. These endpoints are
// called by Stripe and carry their own signature-based authentication.
type WebhookHandler struct {
	BaseHandler
	webhooks *appent.WebhookService
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(webhooks *appent.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// RegisterRoutes registers webhook routes on the API group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and processes one Stripe event. Processing
// outcomes all answer 200 so Stripe stops redelivering; only signature
// failures and malformed requests are rejected.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, "ERR_BAD_REQUEST", "Payload too large")
		return
	}

	// a request with no signature at all is malformed; 401 is reserved for
	// a signature that is present but fails verification
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.BadRequest(c, "Missing Stripe-Signature header")
		return
	}

	outcome, err := h.webhooks.HandleEvent(c.Request.Context(), payload, signature)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}
