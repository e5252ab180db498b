package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/internal/config"
	"github.com/sipat/crew-scheduler/pkg/events"
	"github.com/sipat/crew-scheduler/pkg/lock"
	"github.com/sipat/crew-scheduler/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env       string
	Cfg       *config.Config
	Database  *postgres.DB
	Publisher *events.Dispatcher
	Locker    lock.Locker
	Logger    *zap.Logger
	Ctx       context.Context
}
