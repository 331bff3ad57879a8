package service

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/apikeys"
	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
	"github.com/justinnewbold/pattyshack-integrations/internal/rabbitmq"
	"github.com/justinnewbold/pattyshack-integrations/internal/syncengine"
	"github.com/justinnewbold/pattyshack-integrations/internal/webhooks"
)

// Service holds all application dependencies, keeping handlers free of
// global state.
type Service struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	RMQ         *rabbitmq.Connection
	Registry    *providers.Registry
	Connections *connections.Manager
	Sync        *syncengine.Engine
	Dispatcher  *webhooks.Dispatcher
	APIKeys     *apikeys.Manager
}
