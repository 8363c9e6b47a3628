package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
)

// Storage is a Redis-backed settings provider. Each player is one hash.
type Storage struct {
	cfg Config

	mu     sync.RWMutex
	client *redis.Client
}

// New creates a Redis provider; the connection is made in Initialize
func New(cfg Config) *Storage {
	return &Storage{cfg: cfg}
}

// NewWithClient creates a Redis provider with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Ensure Storage implements the interfaces
var (
	_ storage.Provider   = (*Storage)(nil)
	_ storage.BatchSaver = (*Storage)(nil)
)

func (s *Storage) Name() string {
	return "redis"
}

func (s *Storage) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		opts, err := redis.ParseURL(s.cfg.URL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		opts.PoolSize = s.cfg.PoolSize
		opts.MinIdleConns = s.cfg.MinIdleConns
		s.client = redis.NewClient(opts)
	}

	// Verify connection
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		s.client = nil
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

func (s *Storage) conn() (*redis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, storage.ErrNotInitialized
	}
	return s.client, nil
}

func (s *Storage) SaveSettings(ctx context.Context, settings model.PlayerSettings) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueSave(ctx, pipe, settings)
		return nil
	})
	return err
}

// queueSave writes the hash and refreshes its TTL in one pipeline
func (s *Storage) queueSave(ctx context.Context, pipe redis.Pipeliner, settings model.PlayerSettings) {
	key := settingsKey(settings.ID)
	updated := settings.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	pipe.HSet(ctx, key,
		fieldEnabled, strconv.FormatBool(settings.HUDEnabled),
		fieldPosition, strconv.Itoa(int(settings.HUDPosition)),
		fieldLanguage, settings.Language,
		fieldUpdatedAt, strconv.FormatInt(updated.Unix(), 10),
	)
	pipe.HSetNX(ctx, key, fieldCreatedAt, strconv.FormatInt(time.Now().Unix(), 10))
	if s.cfg.KeyTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.KeyTTL)
	}
}

func (s *Storage) LoadSettings(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error) {
	client, err := s.conn()
	if err != nil {
		return model.PlayerSettings{}, err
	}

	fields, err := client.HGetAll(ctx, settingsKey(id)).Result()
	if err != nil {
		return model.PlayerSettings{}, err
	}
	if len(fields) == 0 {
		return model.PlayerSettings{}, storage.ErrNotFound
	}

	return decodeSettings(id, fields)
}

func decodeSettings(id model.PlayerID, fields map[string]string) (model.PlayerSettings, error) {
	enabled, err := strconv.ParseBool(fields[fieldEnabled])
	if err != nil {
		return model.PlayerSettings{}, fmt.Errorf("%w: %s: %v", storage.ErrMalformed, fieldEnabled, err)
	}
	pos, err := strconv.Atoi(fields[fieldPosition])
	if err != nil || !model.HUDPosition(pos).Valid() {
		return model.PlayerSettings{}, fmt.Errorf("%w: %s=%q", storage.ErrMalformed, fieldPosition, fields[fieldPosition])
	}

	settings := model.PlayerSettings{
		ID:          id,
		HUDEnabled:  enabled,
		HUDPosition: model.HUDPosition(pos),
		Language:    fields[fieldLanguage],
	}
	if ts, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		settings.LastUpdated = time.Unix(ts, 0).UTC()
	}
	return settings, nil
}

// GetCustomData always returns an empty map: custom data lives in relational
// tables that a key-value store does not have.
func (s *Storage) GetCustomData(ctx context.Context, id model.PlayerID) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *Storage) BulkSaveSettings(ctx context.Context, settings []model.PlayerSettings) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	if len(settings) == 0 {
		return nil
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, st := range settings {
			s.queueSave(ctx, pipe, st)
		}
		return nil
	})
	return err
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
