package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cleanlists/api/internal/middleware"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/service"
	"github.com/cleanlists/api/pkg/response"
)

type ProviderHandler struct {
	tokens    *service.TokenService
	validator *validator.Validate
}

func NewProviderHandler(tokens *service.TokenService, v *validator.Validate) *ProviderHandler {
	return &ProviderHandler{
		tokens:    tokens,
		validator: v,
	}
}

// Connect handles POST /api/provider/connect
func (h *ProviderHandler) Connect(c *fiber.Ctx) error {
	var req model.ConnectProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	token, err := h.tokens.Store(c.Context(), userID, req.Provider, req.AccessToken, req.RefreshToken, req.ExpiresIn, req.Scopes, req.Metadata)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, fiber.Map{
		"provider":  token.Provider,
		"expiresAt": token.ExpiresAt,
		"scopes":    token.Scopes,
	})
}

// Disconnect handles POST /api/provider/disconnect
func (h *ProviderHandler) Disconnect(c *fiber.Ctx) error {
	var req model.DisconnectProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.tokens.Revoke(c.Context(), middleware.GetUserID(c), req.Provider); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return response.NotFound(c, "No provider connection found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.NoContent(c)
}

// Status handles GET /api/provider/status
func (h *ProviderHandler) Status(c *fiber.Ctx) error {
	provider := c.Query("provider", "spotify")
	valid := h.tokens.IsValid(c.Context(), middleware.GetUserID(c), provider)
	return response.OK(c, fiber.Map{
		"provider":  provider,
		"connected": valid,
	})
}
