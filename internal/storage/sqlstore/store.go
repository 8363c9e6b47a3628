// Package sqlstore holds the settings table access and custom data queries
// shared by the database/sql backed providers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
)

// TableName is the settings table created by every SQL provider
const TableName = "player_settings"

// maxConcurrentLookups bounds parallel custom data queries per player
const maxConcurrentLookups = 3

// Dialect captures the SQL that differs between database engines.
// Upsert takes (id, hud_enabled, hud_position, language, updated_at).
type Dialect struct {
	Name        string
	CreateTable string
	Upsert      string
	QuoteIdent  func(string) string
	EncodeTime  func(time.Time) any
}

const loadQuery = `SELECT hud_enabled, hud_position, language, updated_at FROM ` + TableName + ` WHERE id = ?`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store runs settings and custom data queries against a *sql.DB
type Store struct {
	db            *sql.DB
	dialect       Dialect
	fields        []storage.NamedField
	defaultSchema string
}

// New creates a Store. defaultSchema qualifies custom data tables whose
// field config leaves the schema empty.
func New(db *sql.DB, dialect Dialect, fields []storage.NamedField, defaultSchema string) *Store {
	return &Store{
		db:            db,
		dialect:       dialect,
		fields:        fields,
		defaultSchema: defaultSchema,
	}
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSchema creates the settings table if it does not exist
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable); err != nil {
		return fmt.Errorf("creating %s table: %w", TableName, err)
	}
	return nil
}

// Save upserts one settings record
func (s *Store) Save(ctx context.Context, settings model.PlayerSettings) error {
	return s.save(ctx, s.db, settings)
}

func (s *Store) save(ctx context.Context, ex execer, settings model.PlayerSettings) error {
	updated := settings.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	language := sql.NullString{String: settings.Language, Valid: settings.Language != ""}

	_, err := ex.ExecContext(ctx, s.dialect.Upsert,
		string(settings.ID),
		settings.HUDEnabled,
		int(settings.HUDPosition),
		language,
		s.dialect.EncodeTime(updated.UTC()),
	)
	if err != nil {
		return fmt.Errorf("upserting settings for %s: %w", settings.ID, err)
	}
	return nil
}

// BulkSave upserts every record in a single transaction
func (s *Store) BulkSave(ctx context.Context, settings []model.PlayerSettings) error {
	if len(settings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, st := range settings {
		if err := s.save(ctx, tx, st); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load reads one settings record. Columns are scanned loosely and converted
// here so that unexpected shapes surface as ErrMalformed rather than as
// driver errors.
func (s *Store) Load(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error) {
	var rawEnabled, rawPosition, rawLanguage, rawUpdated any

	err := s.db.QueryRowContext(ctx, loadQuery, string(id)).Scan(&rawEnabled, &rawPosition, &rawLanguage, &rawUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlayerSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return model.PlayerSettings{}, fmt.Errorf("loading settings for %s: %w", id, err)
	}

	enabled, ok := toInt64(rawEnabled)
	if !ok || (enabled != 0 && enabled != 1) {
		return model.PlayerSettings{}, fmt.Errorf("%w: hud_enabled=%v", storage.ErrMalformed, rawEnabled)
	}
	position, ok := toInt64(rawPosition)
	pos := model.HUDPosition(position)
	if !ok || !pos.Valid() {
		return model.PlayerSettings{}, fmt.Errorf("%w: hud_position=%v", storage.ErrMalformed, rawPosition)
	}
	language, ok := toString(rawLanguage)
	if !ok {
		return model.PlayerSettings{}, fmt.Errorf("%w: language=%v", storage.ErrMalformed, rawLanguage)
	}

	return model.PlayerSettings{
		ID:          id,
		HUDEnabled:  enabled == 1,
		HUDPosition: pos,
		Language:    language,
		LastUpdated: decodeTime(rawUpdated),
	}, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

// decodeTime accepts the shapes drivers return for timestamp columns
func decodeTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	default:
		return time.Time{}
	}
}

func parseTimeString(s string) time.Time {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// CustomData resolves every configured field independently. Values that are
// missing or NULL are left out; failures are joined into the error while the
// successful lookups are still returned.
func (s *Store) CustomData(ctx context.Context, id model.PlayerID) (map[string]string, error) {
	var (
		mu     sync.Mutex
		values = make(map[string]string, len(s.fields))
		errs   []error
		g      errgroup.Group
	)
	g.SetLimit(maxConcurrentLookups)

	for _, field := range s.fields {
		g.Go(func() error {
			value, ok, err := s.lookup(ctx, field, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("custom data %s: %w", field.Key, err))
				return nil
			}
			if ok {
				values[field.Key] = value
			}
			return nil
		})
	}
	_ = g.Wait()

	return values, errors.Join(errs...)
}

func (s *Store) lookup(ctx context.Context, field storage.NamedField, id model.PlayerID) (string, bool, error) {
	query, err := s.customQuery(field.CustomField)
	if err != nil {
		return "", false, err
	}

	var value sql.NullString
	err = s.db.QueryRowContext(ctx, query, string(id)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

// customQuery builds the read-only lookup for a field
func (s *Store) customQuery(f storage.CustomField) (string, error) {
	schema := f.Schema
	if schema == "" {
		schema = s.defaultSchema
	}

	for _, ident := range []string{f.Table, f.Column, f.IDColumn} {
		if !storage.ValidIdentifier(ident) {
			return "", fmt.Errorf("%w: %q", storage.ErrInvalidIdentifier, ident)
		}
	}
	if schema != "" && !storage.ValidIdentifier(schema) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidIdentifier, schema)
	}

	q := s.dialect.QuoteIdent
	table := q(f.Table)
	if schema != "" {
		table = q(schema) + "." + table
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", q(f.Column), table, q(f.IDColumn)), nil
}
