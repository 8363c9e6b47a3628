package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/ingamehud/internal/api/handler"
	"github.com/mcoot/ingamehud/internal/api/middleware"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Loop     handler.Caller
	Sessions handler.Sessions
	Storage  handler.StorageStatus
	// RequestTimeout bounds how long a request waits on the main loop
	RequestTimeout time.Duration
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	playerHandler := handler.NewPlayerHandler(cfg.Loop, cfg.Sessions, timeout)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", handler.Health(cfg.Storage)).Methods(http.MethodGet)
	api.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/settings", playerHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/commands", playerHandler.ApplyCommand).Methods(http.MethodPost)

	return r
}
