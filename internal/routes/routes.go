package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/justinnewbold/pattyshack-integrations/internal/handlers"
	"github.com/justinnewbold/pattyshack-integrations/internal/middleware"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
)

// SetupRoutes wires every endpoint. When authEnabled is true the /api/v1
// group requires a valid API key; /health stays open for probes.
func SetupRoutes(app *fiber.App, svc *service.Service, authEnabled bool) {
	health := handlers.NewHealthHandler(svc)
	app.Get("/health", health.HealthCheck)

	api := app.Group("/api/v1")
	if authEnabled {
		api.Use(middleware.APIKeyAuth(svc.APIKeys))
	}

	providersHandler := handlers.NewProvidersHandler(svc)
	api.Get("/providers", providersHandler.List)

	integrations := handlers.NewIntegrationsHandler(svc)
	api.Post("/integrations", integrations.Connect)
	api.Get("/integrations", integrations.List)
	api.Put("/integrations/:id/status", integrations.SetStatus)
	api.Delete("/integrations/:id", integrations.Disconnect)
	api.Post("/integrations/:id/credentials", integrations.RotateCredentials)
	api.Post("/integrations/:id/sync", integrations.RunSync)
	api.Get("/integrations/:id/sync-logs", integrations.SyncLogs)

	webhooksHandler := handlers.NewWebhooksHandler(svc)
	api.Post("/webhooks", webhooksHandler.Create)
	api.Get("/webhooks", webhooksHandler.List)
	api.Post("/webhooks/trigger", webhooksHandler.Trigger)
	api.Post("/webhooks/retries/run", webhooksHandler.RunRetries)
	api.Put("/webhooks/:id", webhooksHandler.Update)
	api.Delete("/webhooks/:id", webhooksHandler.Delete)
	api.Get("/webhooks/:id/deliveries", webhooksHandler.Deliveries)

	apiKeysHandler := handlers.NewAPIKeysHandler(svc)
	api.Post("/api-keys", apiKeysHandler.Issue)
	api.Get("/api-keys", apiKeysHandler.List)
	api.Delete("/api-keys/:id", apiKeysHandler.Revoke)
}
