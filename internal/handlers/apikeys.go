package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/apikeys"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
)

type APIKeysHandler struct {
	svc *service.Service
}

func NewAPIKeysHandler(svc *service.Service) *APIKeysHandler {
	return &APIKeysHandler{svc: svc}
}

type issueKeyRequest struct {
	Name        string     `json:"name"`
	LocationID  *string    `json:"location_id"`
	UserID      *string    `json:"user_id"`
	Permissions []string   `json:"permissions"`
	RateLimit   int        `json:"rate_limit"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IPAllowlist []string   `json:"ip_allowlist"`
}

// Issue handles POST /api-keys. The response is the only place the plaintext
// key ever appears.
func (h *APIKeysHandler) Issue(c *fiber.Ctx) error {
	var req issueKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	issued, err := h.svc.APIKeys.Issue(c.Context(), apikeys.IssueInput{
		Name:        req.Name,
		LocationID:  req.LocationID,
		UserID:      req.UserID,
		Permissions: req.Permissions,
		RateLimit:   req.RateLimit,
		ExpiresAt:   req.ExpiresAt,
		IPAllowlist: req.IPAllowlist,
	})
	if err != nil {
		return h.internalError(c, "Failed to issue api key", err)
	}
	return c.Status(fiber.StatusCreated).JSON(issued)
}

// List handles GET /api-keys.
func (h *APIKeysHandler) List(c *fiber.Ctx) error {
	keys, err := h.svc.APIKeys.List(c.Context())
	if err != nil {
		return h.internalError(c, "Failed to list api keys", err)
	}
	return c.JSON(fiber.Map{"api_keys": keys})
}

// Revoke handles DELETE /api-keys/:id.
func (h *APIKeysHandler) Revoke(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid api key id")
	}

	key, err := h.svc.APIKeys.Revoke(c.Context(), id)
	if err != nil {
		if errors.Is(err, apikeys.ErrKeyNotFound) {
			return notFound(c, err.Error())
		}
		return h.internalError(c, "Failed to revoke api key", err)
	}
	return c.JSON(key)
}

func (h *APIKeysHandler) internalError(c *fiber.Ctx, msg string, err error) error {
	h.svc.Logger.Error(msg,
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}
