package factory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/ingamehud/internal/api"
	"github.com/mcoot/ingamehud/internal/events"
	"github.com/mcoot/ingamehud/internal/services/router"
)

// flushTimeout bounds the final bulk save at shutdown
const flushTimeout = 10 * time.Second

// Initialize connects storage. Failure of every provider is not an error:
// the plugin keeps running on defaults.
func (a *App) Initialize(ctx context.Context) router.InitResult {
	return a.Router.Initialize(ctx)
}

// Run initializes storage, starts the event bridge and the admin API, and
// drives the main loop until ctx is done. On the way out it flushes every
// cached entry and closes storage.
func (a *App) Run(ctx context.Context) error {
	a.Initialize(ctx)
	defer func() {
		if err := a.Router.Close(); err != nil {
			a.Logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	if a.Config.Events.Enabled {
		stop, err := a.startEvents()
		if err != nil {
			return err
		}
		defer stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.Config.Admin.Enabled {
		server := api.NewServer(api.NewRouter(api.RouterConfig{
			Logger:   a.Logger.With(slog.String("component", "admin")),
			Loop:     a.Loop,
			Sessions: a.Controller,
			Storage:  a.Router,
		}), api.ServerConfig{
			Addr:            a.Config.Admin.Addr,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		}, a.Logger)
		if err := server.Listen(); err != nil {
			return err
		}

		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	onFrame := a.Controller.OnTick
	if a.Config.Sync.HostTicks {
		onFrame = nil
	}
	g.Go(func() error {
		a.Loop.Run(gctx, a.Config.Sync.TickInterval, onFrame)
		return nil
	})

	err := g.Wait()

	// The loop has stopped, so the controller is ours alone from here
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	a.Controller.OnShutdown(flushCtx)
	a.Loop.RunPending()

	return err
}

// startEvents connects the bridge to NATS, starting an embedded server when
// configured. The returned function tears everything down.
func (a *App) startEvents() (func(), error) {
	cfg := a.Config.Events
	logger := a.Logger.With(slog.String("component", "events"))

	url := cfg.NATSURL
	var server *events.EmbeddedServer
	if cfg.Embedded {
		var err error
		server, err = events.StartEmbedded(cfg.Host, cfg.Port, cfg.StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("starting embedded nats: %w", err)
		}
		url = server.ClientURL()
		logger.Info("embedded nats server started", slog.String("url", url))
	}

	conn, err := nats.Connect(url, nats.Name("ingamehud"))
	if err != nil {
		if server != nil {
			server.Shutdown()
		}
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	var opts []events.BridgeOpt
	if a.Config.Sync.HostTicks {
		opts = append(opts, events.WithHostTicks())
	}
	bridge := events.NewBridge(conn, cfg.SubjectPrefix, a.Loop, a.Controller, logger, opts...)
	if err := bridge.Start(); err != nil {
		conn.Close()
		if server != nil {
			server.Shutdown()
		}
		return nil, err
	}

	return func() {
		bridge.Close()
		conn.Close()
		if server != nil {
			server.Shutdown()
		}
	}, nil
}
