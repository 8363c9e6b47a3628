package factory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/ingamehud/internal/config"
	"github.com/mcoot/ingamehud/internal/dependencies/clock"
	"github.com/mcoot/ingamehud/internal/display"
	"github.com/mcoot/ingamehud/internal/mainloop"
	"github.com/mcoot/ingamehud/internal/services/router"
	"github.com/mcoot/ingamehud/internal/services/session"
	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/storage/memory"
	"github.com/mcoot/ingamehud/internal/storage/mysql"
	redisstorage "github.com/mcoot/ingamehud/internal/storage/redis"
	"github.com/mcoot/ingamehud/internal/storage/sqlite"
)

// App contains all wired application components. It lives for the whole
// process and replaces any package-level state.
type App struct {
	Config config.Config
	Logger *slog.Logger

	// External dependencies
	Clock   clock.Clock
	Display display.Display

	// Services
	Loop       *mainloop.Loop
	Router     *router.Router
	Controller *session.Controller
}

// New creates a new application with all dependencies wired. Storage is not
// contacted until Initialize or Run.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	// Use no-op logger if not provided
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	providers, err := Providers(cfg)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(cfg, providers, clock.New(), display.NewLogDisplay(logger.With(slog.String("component", "display"))), logger), nil
}

// Providers builds the storage candidates in fallback order: MySQL and Redis
// when enabled, then the embedded provider
func Providers(cfg config.Config) ([]storage.Provider, error) {
	fields := cfg.CustomData.Enabled()

	var providers []storage.Provider
	if cfg.Storage.MySQL.Enabled {
		providers = append(providers, mysql.New(cfg.Storage.MySQL, fields))
	}
	if cfg.Storage.Redis.Enabled {
		providers = append(providers, redisstorage.New(cfg.Storage.Redis))
	}

	switch cfg.Storage.Embedded.Driver {
	case config.DriverSQLite:
		providers = append(providers, sqlite.New(sqlite.Config{Path: cfg.Storage.Embedded.Path}, fields))
	case config.DriverMemory:
		providers = append(providers, memory.NewWithFields(fields))
	default:
		return nil, fmt.Errorf("invalid embedded storage driver %q", cfg.Storage.Embedded.Driver)
	}

	return providers, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(cfg config.Config, providers []storage.Provider, clk clock.Clock, disp display.Display, logger *slog.Logger) *App {
	loop := mainloop.New()

	storageRouter := router.New(router.Options{
		OpTimeout:       cfg.Storage.OpTimeout,
		DefaultLanguage: cfg.DefaultLanguage,
	}, logger.With(slog.String("component", "storage")), providers...)

	controller := session.New(storageRouter, loop, disp, clk, session.Options{
		DefaultLanguage:      cfg.DefaultLanguage,
		SupportedLanguages:   cfg.SupportedLanguages,
		DisconnectTimeout:    cfg.Storage.DisconnectTimeout,
		SaveAttempts:         cfg.Storage.SaveAttempts,
		RetryInterval:        cfg.Storage.RetryInterval,
		RefreshEveryTicks:    cfg.Sync.RefreshEveryTicks,
		CustomDataEveryTicks: cfg.Sync.CustomDataEveryTicks,
	}, logger.With(slog.String("component", "session")))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Display:    disp,
		Loop:       loop,
		Router:     storageRouter,
		Controller: controller,
	}
}
