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

type SyncHandler struct {
	service   *service.SyncService
	validator *validator.Validate
}

func NewSyncHandler(svc *service.SyncService, v *validator.Validate) *SyncHandler {
	return &SyncHandler{
		service:   svc,
		validator: v,
	}
}

// Enable handles POST /api/sync/enable/:jobId
func (h *SyncHandler) Enable(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.EnableSyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	config, err := h.service.Enable(c.Context(), middleware.GetUserID(c), jobID, req.Frequency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotEligible):
			return response.ValidationError(c, "Job must be completed with a target playlist", nil)
		case errors.Is(err, service.ErrSubscriptionRequired):
			return response.Forbidden(c, "Active subscription required to enable sync")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Created(c, config)
}

// Run handles POST /api/sync/:configId/run
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	configID := c.Params("configId")
	if configID == "" {
		return response.ValidationError(c, "Config ID is required", nil)
	}

	history, err := h.service.RunForUser(c.Context(), middleware.GetUserID(c), configID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSyncNotFound):
			return response.NotFound(c, "Sync config not found")
		case errors.Is(err, service.ErrCredential), errors.Is(err, service.ErrTokenNotFound):
			return response.CredentialError(c, "Music provider connection required")
		default:
			// The attempt itself is recorded; hand the history row back.
			if history != nil {
				return response.OK(c, history)
			}
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, history)
}

// Disable handles POST /api/sync/:configId/disable
func (h *SyncHandler) Disable(c *fiber.Ctx) error {
	configID := c.Params("configId")
	if configID == "" {
		return response.ValidationError(c, "Config ID is required", nil)
	}

	if err := h.service.Disable(c.Context(), middleware.GetUserID(c), configID); err != nil {
		if errors.Is(err, service.ErrSyncNotFound) {
			return response.NotFound(c, "Sync config not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.NoContent(c)
}

// List handles GET /api/sync
func (h *SyncHandler) List(c *fiber.Ctx) error {
	configs, err := h.service.List(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, configs)
}

// History handles GET /api/sync/:configId/history
func (h *SyncHandler) History(c *fiber.Ctx) error {
	configID := c.Params("configId")
	if configID == "" {
		return response.ValidationError(c, "Config ID is required", nil)
	}

	limit := c.QueryInt("limit", 20)
	history, err := h.service.History(c.Context(), middleware.GetUserID(c), configID, limit)
	if err != nil {
		if errors.Is(err, service.ErrSyncNotFound) {
			return response.NotFound(c, "Sync config not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, history)
}
