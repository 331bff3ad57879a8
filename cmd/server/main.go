package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/apikeys"
	"github.com/justinnewbold/pattyshack-integrations/internal/config"
	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/database"
	"github.com/justinnewbold/pattyshack-integrations/internal/events"
	"github.com/justinnewbold/pattyshack-integrations/internal/logger"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
	"github.com/justinnewbold/pattyshack-integrations/internal/rabbitmq"
	"github.com/justinnewbold/pattyshack-integrations/internal/routes"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
	"github.com/justinnewbold/pattyshack-integrations/internal/syncengine"
	"github.com/justinnewbold/pattyshack-integrations/internal/vault"
	"github.com/justinnewbold/pattyshack-integrations/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	credVault, err := vault.NewFromHex(cfg.Vault.KeyHex)
	if err != nil {
		log.Fatal("Failed to initialize credential vault", zap.Error(err))
	}

	registry := providers.NewRegistry()
	connManager := connections.NewManager(db, credVault, registry, log)
	engine := syncengine.NewEngine(db, registry, connManager, log)
	dispatcher := webhooks.NewDispatcher(db, credVault, log,
		time.Duration(cfg.Webhook.TimeoutSecs)*time.Second,
		cfg.Webhook.MaxResponseChars,
	)
	keyManager := apikeys.NewManager(db, log)

	svc := &service.Service{
		DB:          db,
		Logger:      log,
		Registry:    registry,
		Connections: connManager,
		Sync:        engine,
		Dispatcher:  dispatcher,
		APIKeys:     keyManager,
	}

	var consumer *events.Consumer
	if cfg.Events.Enabled {
		rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, log)
		if err := rmq.Connect(); err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rmq.Close()
		svc.RMQ = rmq

		consumer = events.NewConsumer(&cfg.Events, rmq, dispatcher, log)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start event consumer", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "PattyShack Integrations",
		ServerHeader: "Fiber",
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key",
	}))

	routes.SetupRoutes(app, svc, cfg.Auth.Enabled)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.Error("Error stopping event consumer", zap.Error(err))
		}
	}
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
