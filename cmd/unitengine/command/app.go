// Package command provides the unitengine daemon's command line interface.
package command

import (
	"context"

	"github.com/shinygold/unitengine/internal/bus"
	"github.com/shinygold/unitengine/internal/config"
	"github.com/shinygold/unitengine/internal/jobs"
	"github.com/shinygold/unitengine/internal/log"
	"github.com/shinygold/unitengine/internal/manager"
	"github.com/shinygold/unitengine/internal/vtable"
)

// App holds the daemon's wired dependencies.
type App struct {
	Logger  log.Logger
	Config  *config.Settings
	Manager *manager.Manager
	Bus     bus.Connection
}

// NewApp wires a fresh App from cfg: a bus connection (best-effort — a
// failure to reach the system/user bus degrades to a nil Connection rather
// than aborting startup, since the engine is still useful without signal
// emission), an in-memory job engine, an empty vtable registry, and the
// Manager tying all of it together.
func NewApp(ctx context.Context, cfg *config.Settings, logger log.Logger) *App {
	if logger == nil {
		logger = log.GetLogger()
	}

	factory := bus.NewConnectionFactory(logger)
	conn, err := factory.NewConnection(ctx, cfg.UserMode)
	if err != nil {
		logger.Warn("failed to connect to bus, signals will not be emitted", "error", err)
	}

	registry := vtable.NewRegistry()
	jobsEngine := jobs.NewInMemoryEngine()

	mgr := manager.New(cfg, registry, jobsEngine, conn, logger)

	return &App{
		Logger:  logger,
		Config:  cfg,
		Manager: mgr,
		Bus:     conn,
	}
}

// Close releases the app's bus connection, if one was established.
func (a *App) Close() error {
	if a.Bus != nil {
		return a.Bus.Close()
	}
	return nil
}
