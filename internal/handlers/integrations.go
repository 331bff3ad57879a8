package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
)

type IntegrationsHandler struct {
	svc *service.Service
}

func NewIntegrationsHandler(svc *service.Service) *IntegrationsHandler {
	return &IntegrationsHandler{svc: svc}
}

type connectRequest struct {
	LocationID       string            `json:"location_id"`
	ProviderID       string            `json:"provider_id"`
	Credentials      map[string]string `json:"credentials"`
	Config           map[string]string `json:"config"`
	SyncIntervalMins int               `json:"sync_interval_minutes"`
	AutoSync         bool              `json:"auto_sync"`
	EnabledFeatures  []string          `json:"enabled_features"`
}

// Connect handles POST /integrations.
func (h *IntegrationsHandler) Connect(c *fiber.Ctx) error {
	var req connectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.LocationID == "" || req.ProviderID == "" {
		return badRequest(c, "location_id and provider_id are required")
	}
	if len(req.Credentials) == 0 {
		return badRequest(c, "credentials are required")
	}

	result, err := h.svc.Connections.Connect(c.Context(), connections.ConnectInput{
		LocationID:       req.LocationID,
		ProviderID:       req.ProviderID,
		Credentials:      req.Credentials,
		Config:           req.Config,
		SyncIntervalMins: req.SyncIntervalMins,
		AutoSync:         req.AutoSync,
		EnabledFeatures:  req.EnabledFeatures,
	})
	if err != nil {
		switch {
		case errors.Is(err, connections.ErrUnknownProvider):
			return badRequest(c, err.Error())
		case errors.Is(err, connections.ErrDuplicateProvider):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			return h.internalError(c, "Failed to connect integration", err)
		}
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// List handles GET /integrations?location_id=.
func (h *IntegrationsHandler) List(c *fiber.Ctx) error {
	locationID := c.Query("location_id")
	if locationID == "" {
		return badRequest(c, "location_id query parameter is required")
	}

	integrations, err := h.svc.Connections.ListForLocation(c.Context(), locationID)
	if err != nil {
		return h.internalError(c, "Failed to list integrations", err)
	}
	return c.JSON(fiber.Map{"integrations": integrations})
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /integrations/:id/status.
func (h *IntegrationsHandler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid integration id")
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	switch req.Status {
	case models.IntegrationStatusPending, models.IntegrationStatusActive,
		models.IntegrationStatusError, models.IntegrationStatusDisabled:
	default:
		return badRequest(c, "invalid status: "+req.Status)
	}

	integration, err := h.svc.Connections.SetStatus(c.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, connections.ErrIntegrationNotFound):
			return notFound(c, err.Error())
		case errors.Is(err, connections.ErrInvalidTransition):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			return h.internalError(c, "Failed to update integration status", err)
		}
	}
	return c.JSON(integration)
}

// Disconnect handles DELETE /integrations/:id.
func (h *IntegrationsHandler) Disconnect(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid integration id")
	}

	integration, err := h.svc.Connections.Disconnect(c.Context(), id)
	if err != nil {
		if errors.Is(err, connections.ErrIntegrationNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Failed to disconnect integration", err)
	}
	return c.JSON(integration)
}

type rotateRequest struct {
	Credentials map[string]string `json:"credentials"`
}

// RotateCredentials handles POST /integrations/:id/credentials.
func (h *IntegrationsHandler) RotateCredentials(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid integration id")
	}

	var req rotateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Credentials) == 0 {
		return badRequest(c, "credentials are required")
	}

	integration, err := h.svc.Connections.RotateCredentials(c.Context(), id, req.Credentials)
	if err != nil {
		if errors.Is(err, connections.ErrIntegrationNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Failed to rotate credentials", err)
	}
	return c.JSON(integration)
}

type syncRequest struct {
	SyncType string `json:"sync_type"`
}

// RunSync handles POST /integrations/:id/sync.
func (h *IntegrationsHandler) RunSync(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid integration id")
	}

	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SyncType == "" {
		req.SyncType = models.SyncTypeManual
	}

	result, err := h.svc.Sync.RunSync(c.Context(), id, req.SyncType)
	if err != nil {
		if errors.Is(err, connections.ErrIntegrationNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Sync run failed", err)
	}
	return c.JSON(result)
}

// SyncLogs handles GET /integrations/:id/sync-logs?limit=.
func (h *IntegrationsHandler) SyncLogs(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid integration id")
	}

	logs, err := h.svc.Sync.History(c.Context(), id, c.QueryInt("limit"))
	if err != nil {
		return h.internalError(c, "Failed to load sync logs", err)
	}
	return c.JSON(fiber.Map{"sync_logs": logs})
}

func (h *IntegrationsHandler) internalError(c *fiber.Ctx, msg string, err error) error {
	h.svc.Logger.Error(msg,
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}
