package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lupafinanceira/backend/internal/services"
	"github.com/lupafinanceira/backend/pkg/logger"
	"github.com/lupafinanceira/backend/pkg/req"
	"github.com/lupafinanceira/backend/pkg/res"
)

// WebhookHandler receives asynchronous payment notifications from the
// gateway.
type WebhookHandler struct {
	service *services.PaymentService
	log     *logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service *services.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

type webhookRequest struct {
	Type string `json:"type"`
	Data struct {
		// The gateway sends the id as a number or a string depending on the
		// notification mode.
		ID any `json:"id"`
	} `json:"data"`
}

// HandleWebhook handles POST /webhooks/mercadopago. Normal completion is
// always acknowledged with 200 so the gateway does not retry delivery;
// only an actual processing failure surfaces as 500 (which the gateway
// retries per its own policy).
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := req.Decode[webhookRequest](c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to decode webhook body", "error", err)
		res.JsonResponse(c.Writer, gin.H{"error": err.Error()}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	paymentID := stringifyID(body.Data.ID)
	h.log.Infow("Webhook received", "type", body.Type, "paymentID", paymentID)

	if err := h.service.ProcessWebhook(ctx, body.Type, paymentID); err != nil {
		h.log.Errorw("Webhook processing failed", "error", err, "type", body.Type, "paymentID", paymentID)
		res.JsonResponse(c.Writer, gin.H{"error": err.Error()}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	res.JsonResponse(c.Writer, gin.H{"received": true}, http.StatusOK)
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}
