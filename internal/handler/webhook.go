package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cleanlists/api/internal/middleware"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/service"
	"github.com/cleanlists/api/pkg/response"
)

// SignatureHeader carries the payment processor's HMAC of the raw body.
const SignatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	service *service.WebhookService
}

func NewWebhookHandler(svc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

// Handle handles POST /webhooks/billing. The raw body is verified before
// any parsing so forged payloads never reach storage.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get(SignatureHeader)

	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return response.ValidationError(c, "Invalid event payload", nil)
	}

	err := h.service.Handle(c.Context(), envelope.ID, envelope.Type, body, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			return response.Unauthorized(c, "Invalid signature")
		case errors.Is(err, service.ErrInvalidEvent):
			return response.ValidationError(c, "Invalid event payload", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, fiber.Map{"received": true})
}

// Subscription handles GET /api/subscription
func (h *WebhookHandler) Subscription(c *fiber.Ctx) error {
	sub, err := h.service.Subscription(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if sub == nil {
		return response.OK(c, fiber.Map{"status": model.SubscriptionStatusCanceled, "active": false})
	}
	return response.OK(c, fiber.Map{
		"status":           sub.Status,
		"active":           sub.Active(),
		"plan":             sub.Plan,
		"currentPeriodEnd": sub.CurrentPeriodEnd,
	})
}
