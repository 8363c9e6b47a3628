package memory

import (
	"context"
	"sync"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
)

// Storage is an in-memory settings provider. Records survive reconnects but
// not process restarts.
type Storage struct {
	mu sync.RWMutex

	settings    map[model.PlayerID]model.PlayerSettings
	customData  map[model.PlayerID]map[string]string
	initialized bool

	// enabled restricts custom data keys when non-nil
	enabled map[string]bool
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		settings:   make(map[model.PlayerID]model.PlayerSettings),
		customData: make(map[model.PlayerID]map[string]string),
	}
}

// NewWithFields creates storage that only returns custom data for the
// enabled fields
func NewWithFields(fields []storage.NamedField) *Storage {
	s := New()
	s.enabled = make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Enabled {
			s.enabled[f.Key] = true
		}
	}
	return s
}

// Ensure Storage implements the interfaces
var (
	_ storage.Provider   = (*Storage)(nil)
	_ storage.BatchSaver = (*Storage)(nil)
)

func (s *Storage) Name() string {
	return "memory"
}

func (s *Storage) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *Storage) SaveSettings(ctx context.Context, settings model.PlayerSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return storage.ErrNotInitialized
	}
	s.settings[settings.ID] = persisted(settings)
	return nil
}

func (s *Storage) LoadSettings(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error) {
	if err := ctx.Err(); err != nil {
		return model.PlayerSettings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.PlayerSettings{}, storage.ErrNotInitialized
	}
	settings, ok := s.settings[id]
	if !ok {
		return model.PlayerSettings{}, storage.ErrNotFound
	}
	return settings, nil
}

// GetCustomData returns values seeded with SetCustomData, limited to the
// enabled fields when the storage was built with NewWithFields
func (s *Storage) GetCustomData(ctx context.Context, id model.PlayerID) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]string, len(s.customData[id]))
	for k, v := range s.customData[id] {
		if s.enabled != nil && !s.enabled[k] {
			continue
		}
		result[k] = v
	}
	return result, nil
}

func (s *Storage) BulkSaveSettings(ctx context.Context, settings []model.PlayerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return storage.ErrNotInitialized
	}
	for _, st := range settings {
		s.settings[st.ID] = persisted(st)
	}
	return nil
}

// SetCustomData seeds custom data for a player
func (s *Storage) SetCustomData(id model.PlayerID, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.customData[id] = copied
}

// Len returns the number of stored settings records
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.settings)
}

func (s *Storage) Close() error {
	return nil
}

// persisted strips everything the real backends do not store
func persisted(settings model.PlayerSettings) model.PlayerSettings {
	return model.PlayerSettings{
		ID:          settings.ID,
		HUDEnabled:  settings.HUDEnabled,
		HUDPosition: settings.HUDPosition,
		Language:    settings.Language,
		LastUpdated: settings.LastUpdated,
	}
}
