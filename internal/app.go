// Package internal contains core application functionality
package internal

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"rankrent/internal/config"
	"rankrent/internal/database"
	"rankrent/internal/jobs"
	"rankrent/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the rankrent components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // DB manager with migration methods
	Logger    *slog.Logger
	Geo       *geoip.Resolver
	cfg       *config.Config
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, nil)
}

// NewAppWithRoutes creates a new application with a custom route mounting
// function. A nil routeMount mounts the application routes.
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// The collector and the GeoLite updater share one resolver so reloads reach ingestion.
	geo := OpenGeo(cfg, logger)
	if routeMount == nil {
		routeMount = RoutesWithGeo(geo)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger, geo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Logger:      logger,
		Geo:         geo,
		cfg:         cfg,
	}, nil
}

// Services wires the domain services on the application's database, for
// callers outside the HTTP server such as the CLI.
func (a *Application) Services() Dependencies {
	return NewServices(a.cfg, a.DBManager.GetConnection(), a.Logger, a.Geo)
}
