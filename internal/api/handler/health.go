package handler

import (
	"net/http"

	"github.com/mcoot/ingamehud/internal/api/response"
)

// StorageStatus reports which provider is active
type StorageStatus interface {
	Connected() bool
	ActiveProvider() string
}

// Health handles GET /api/v1/health. Degraded storage is still healthy: the
// HUD keeps working on defaults.
func Health(storage StorageStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{
			Status:           "ok",
			StorageConnected: storage.Connected(),
			StorageProvider:  storage.ActiveProvider(),
		})
	}
}
