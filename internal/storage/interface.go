package storage

import (
	"context"

	"github.com/mcoot/ingamehud/internal/model"
)

// Provider is a storage backend for player settings.
//
// Providers report failures as errors and never substitute defaults
// themselves; the router decides how to degrade.
type Provider interface {
	// Name identifies the backend in logs and health output
	Name() string

	// Initialize connects and prepares the schema. It is the only operation
	// whose failure is expected to change which provider is used.
	Initialize(ctx context.Context) error

	// SaveSettings upserts the persisted preference fields keyed by player id
	SaveSettings(ctx context.Context, settings model.PlayerSettings) error

	// LoadSettings returns ErrNotFound when no record exists and
	// ErrMalformed when the stored record cannot be interpreted
	LoadSettings(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error)

	// GetCustomData returns the enabled custom data keys that resolved.
	// A failing field does not prevent sibling fields from being returned;
	// their errors are joined into the returned error.
	GetCustomData(ctx context.Context, id model.PlayerID) (map[string]string, error)

	Close() error
}

// BatchSaver is implemented by providers with a native batch path
// (transaction or pipeline) used for shutdown flushes.
type BatchSaver interface {
	BulkSaveSettings(ctx context.Context, settings []model.PlayerSettings) error
}
