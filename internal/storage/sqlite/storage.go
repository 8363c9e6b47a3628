package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/storage/sqlstore"
)

// MemoryPath keeps the database inside the process
const MemoryPath = ":memory:"

// Config holds the embedded database location
type Config struct {
	Path string `yaml:"path"`
}

// DefaultConfig stores the database next to the plugin data
func DefaultConfig() Config {
	return Config{Path: filepath.Join("data", "ingamehud.db")}
}

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS ` + sqlstore.TableName + ` (
		id TEXT NOT NULL PRIMARY KEY,
		hud_enabled INTEGER NOT NULL DEFAULT 1,
		hud_position INTEGER NOT NULL DEFAULT 3,
		language TEXT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`,
	Upsert: `INSERT INTO ` + sqlstore.TableName + ` (id, hud_enabled, hud_position, language, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hud_enabled = excluded.hud_enabled,
			hud_position = excluded.hud_position,
			language = excluded.language,
			updated_at = excluded.updated_at`,
	QuoteIdent: func(s string) string { return `"` + s + `"` },
	EncodeTime: func(t time.Time) any { return t.Unix() },
}

// Storage is the embedded single-file settings provider. It needs no
// network and is the last resort of the fallback chain.
type Storage struct {
	cfg    Config
	fields []storage.NamedField

	mu    sync.RWMutex
	store *sqlstore.Store
}

// New creates an embedded provider. Custom data fields are looked up in
// tables of the same database file.
func New(cfg Config, fields []storage.NamedField) *Storage {
	return &Storage{cfg: cfg, fields: fields}
}

// Ensure Storage implements the interfaces
var (
	_ storage.Provider   = (*Storage)(nil)
	_ storage.BatchSaver = (*Storage)(nil)
)

func (s *Storage) Name() string {
	return "sqlite"
}

func (s *Storage) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return nil
	}

	if s.cfg.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("connecting to sqlite database: %w", err)
	}

	store := sqlstore.New(db, dialect, s.fields, "")
	if err := store.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}

	s.store = store
	return nil
}

func (s *Storage) current() (*sqlstore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, storage.ErrNotInitialized
	}
	return s.store, nil
}

func (s *Storage) SaveSettings(ctx context.Context, settings model.PlayerSettings) error {
	store, err := s.current()
	if err != nil {
		return err
	}
	return store.Save(ctx, settings)
}

func (s *Storage) LoadSettings(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error) {
	store, err := s.current()
	if err != nil {
		return model.PlayerSettings{}, err
	}
	return store.Load(ctx, id)
}

func (s *Storage) GetCustomData(ctx context.Context, id model.PlayerID) (map[string]string, error) {
	store, err := s.current()
	if err != nil {
		return map[string]string{}, err
	}
	return store.CustomData(ctx, id)
}

func (s *Storage) BulkSaveSettings(ctx context.Context, settings []model.PlayerSettings) error {
	store, err := s.current()
	if err != nil {
		return err
	}
	return store.BulkSave(ctx, settings)
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.DB().Close()
	s.store = nil
	return err
}
