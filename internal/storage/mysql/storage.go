package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/storage/sqlstore"
)

var dialect = sqlstore.Dialect{
	Name: "mysql",
	CreateTable: "CREATE TABLE IF NOT EXISTS `" + sqlstore.TableName + "` (" +
		"`id` VARCHAR(32) NOT NULL PRIMARY KEY," +
		"`hud_enabled` TINYINT(1) NOT NULL DEFAULT 1," +
		"`hud_position` TINYINT NOT NULL DEFAULT 3," +
		"`language` VARCHAR(16) NULL," +
		"`created_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP," +
		"`updated_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	Upsert: "INSERT INTO `" + sqlstore.TableName + "` (`id`, `hud_enabled`, `hud_position`, `language`, `updated_at`) " +
		"VALUES (?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `hud_enabled` = VALUES(`hud_enabled`), `hud_position` = VALUES(`hud_position`), " +
		"`language` = VALUES(`language`), `updated_at` = VALUES(`updated_at`)",
	QuoteIdent: func(s string) string { return "`" + s + "`" },
	EncodeTime: func(t time.Time) any { return t },
}

// Storage is the primary relational settings provider. Custom data tables
// default to the configured database when a field has no schema.
type Storage struct {
	cfg    Config
	fields []storage.NamedField

	mu      sync.RWMutex
	store   *sqlstore.Store
	ownedDB bool
	db      *sql.DB
}

// New creates a provider that opens its own pool on Initialize
func New(cfg Config, fields []storage.NamedField) *Storage {
	return &Storage{cfg: cfg, fields: fields, ownedDB: true}
}

// NewWithDB creates a provider over an existing pool (useful for testing)
func NewWithDB(db *sql.DB, cfg Config, fields []storage.NamedField) *Storage {
	return &Storage{cfg: cfg, fields: fields, db: db}
}

// Ensure Storage implements the interfaces
var (
	_ storage.Provider   = (*Storage)(nil)
	_ storage.BatchSaver = (*Storage)(nil)
)

func (s *Storage) Name() string {
	return "mysql"
}

func (s *Storage) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return nil
	}

	db := s.db
	if db == nil {
		var err error
		db, err = sql.Open("mysql", s.cfg.DSN())
		if err != nil {
			return fmt.Errorf("opening mysql pool: %w", err)
		}
		if s.cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(s.cfg.MaxOpenConns)
			db.SetMaxIdleConns(s.cfg.MaxOpenConns)
		}
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	fail := func(err error) error {
		if s.ownedDB {
			_ = db.Close()
		}
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("connecting to mysql at %s:%d: %w", s.cfg.Host, s.cfg.Port, err))
	}

	store := sqlstore.New(db, dialect, s.fields, s.cfg.Database)
	if err := store.CreateSchema(ctx); err != nil {
		return fail(err)
	}

	s.db = db
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
	if s.db == nil {
		return nil
	}
	// Pools passed to NewWithDB belong to the caller
	var err error
	if s.ownedDB {
		err = s.db.Close()
	}
	s.db = nil
	s.store = nil
	return err
}
