package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
	"github.com/justinnewbold/pattyshack-integrations/internal/webhooks"
)

type WebhooksHandler struct {
	svc *service.Service
}

func NewWebhooksHandler(svc *service.Service) *WebhooksHandler {
	return &WebhooksHandler{svc: svc}
}

type createWebhookRequest struct {
	LocationID     *string           `json:"location_id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	AuthType       string            `json:"auth_type"`
	BearerToken    string            `json:"bearer_token"`
	Events         []string          `json:"events"`
	RetryOnFailure *bool             `json:"retry_on_failure"`
	MaxRetries     int               `json:"max_retries"`
	RetryDelaySecs int               `json:"retry_delay_seconds"`
}

// Create handles POST /webhooks.
func (h *WebhooksHandler) Create(c *fiber.Ctx) error {
	var req createWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	for _, e := range req.Events {
		if _, err := models.ParseEventType(e); err != nil {
			return badRequest(c, err.Error())
		}
	}

	wh, err := h.svc.Dispatcher.Create(c.Context(), webhooks.CreateInput{
		LocationID:     req.LocationID,
		Name:           req.Name,
		URL:            req.URL,
		Method:         req.Method,
		Headers:        req.Headers,
		AuthType:       req.AuthType,
		BearerToken:    req.BearerToken,
		Events:         req.Events,
		RetryOnFailure: req.RetryOnFailure,
		MaxRetries:     req.MaxRetries,
		RetryDelaySecs: req.RetryDelaySecs,
	})
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(wh)
}

// List handles GET /webhooks?location_id=.
func (h *WebhooksHandler) List(c *fiber.Ctx) error {
	hooks, err := h.svc.Dispatcher.List(c.Context(), c.Query("location_id"))
	if err != nil {
		return h.internalError(c, "Failed to list webhooks", err)
	}
	return c.JSON(fiber.Map{"webhooks": hooks})
}

type updateWebhookRequest struct {
	Name           *string           `json:"name"`
	URL            *string           `json:"url"`
	Method         *string           `json:"method"`
	Headers        map[string]string `json:"headers"`
	AuthType       *string           `json:"auth_type"`
	BearerToken    *string           `json:"bearer_token"`
	Events         []string          `json:"events"`
	Active         *bool             `json:"active"`
	RetryOnFailure *bool             `json:"retry_on_failure"`
	MaxRetries     *int              `json:"max_retries"`
	RetryDelaySecs *int              `json:"retry_delay_seconds"`
}

// Update handles PUT /webhooks/:id.
func (h *WebhooksHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid webhook id")
	}

	var req updateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	for _, e := range req.Events {
		if _, err := models.ParseEventType(e); err != nil {
			return badRequest(c, err.Error())
		}
	}

	wh, err := h.svc.Dispatcher.Update(c.Context(), id, webhooks.UpdateInput{
		Name:           req.Name,
		URL:            req.URL,
		Method:         req.Method,
		Headers:        req.Headers,
		AuthType:       req.AuthType,
		BearerToken:    req.BearerToken,
		Events:         req.Events,
		Active:         req.Active,
		RetryOnFailure: req.RetryOnFailure,
		MaxRetries:     req.MaxRetries,
		RetryDelaySecs: req.RetryDelaySecs,
	})
	if err != nil {
		if errors.Is(err, webhooks.ErrWebhookNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Failed to update webhook", err)
	}
	return c.JSON(wh)
}

// Delete handles DELETE /webhooks/:id.
func (h *WebhooksHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid webhook id")
	}

	if err := h.svc.Dispatcher.Delete(c.Context(), id); err != nil {
		if errors.Is(err, webhooks.ErrWebhookNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Failed to delete webhook", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type triggerRequest struct {
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}

// Trigger handles POST /webhooks/trigger: fan the event out and return the
// settled per-subscriber outcomes.
func (h *WebhooksHandler) Trigger(c *fiber.Ctx) error {
	var req triggerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	eventType, err := models.ParseEventType(req.EventType)
	if err != nil {
		return badRequest(c, err.Error())
	}

	outcomes, err := h.svc.Dispatcher.Trigger(c.Context(), string(eventType), req.Payload)
	if err != nil {
		return h.internalError(c, "Failed to trigger webhooks", err)
	}
	return c.JSON(fiber.Map{"outcomes": outcomes})
}

// Deliveries handles GET /webhooks/:id/deliveries?limit=.
func (h *WebhooksHandler) Deliveries(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid webhook id")
	}

	deliveries, err := h.svc.Dispatcher.Deliveries(c.Context(), id, c.QueryInt("limit"))
	if err != nil {
		return h.internalError(c, "Failed to load deliveries", err)
	}
	return c.JSON(fiber.Map{"deliveries": deliveries})
}

// RunRetries handles POST /webhooks/retries/run, the retry sweep an external
// scheduler drives.
func (h *WebhooksHandler) RunRetries(c *fiber.Ctx) error {
	outcomes, err := h.svc.Dispatcher.RetryDue(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return h.internalError(c, "Retry sweep failed", err)
	}
	return c.JSON(fiber.Map{"outcomes": outcomes})
}

func (h *WebhooksHandler) internalError(c *fiber.Ctx, msg string, err error) error {
	h.svc.Logger.Error(msg,
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}
