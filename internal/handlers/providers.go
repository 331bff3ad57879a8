package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/justinnewbold/pattyshack-integrations/internal/service"
)

type ProvidersHandler struct {
	svc *service.Service
}

func NewProvidersHandler(svc *service.Service) *ProvidersHandler {
	return &ProvidersHandler{svc: svc}
}

// List handles GET /providers, optionally filtered by ?category=.
func (h *ProvidersHandler) List(c *fiber.Ctx) error {
	providers := h.svc.Registry.List(c.Query("category"))
	return c.JSON(fiber.Map{"providers": providers})
}
