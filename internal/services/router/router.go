// Package router selects the active storage provider and shields callers
// from storage failures.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
)

// Options configures the Router
type Options struct {
	// OpTimeout bounds every provider call. Zero means no extra bound.
	OpTimeout time.Duration
	// DefaultLanguage fills the language of substituted defaults
	DefaultLanguage string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		OpTimeout:       3 * time.Second,
		DefaultLanguage: "en",
	}
}

// Router holds exactly one active provider, chosen from an ordered list of
// candidates on Initialize. With no active provider it runs disconnected:
// loads return defaults and saves report failure.
type Router struct {
	candidates []storage.Provider
	opts       Options
	logger     *slog.Logger

	mu     sync.RWMutex
	active storage.Provider
}

// New creates a Router over candidates in fallback order
func New(opts Options, logger *slog.Logger, candidates ...storage.Provider) *Router {
	return &Router{
		candidates: candidates,
		opts:       opts,
		logger:     logger,
	}
}

// Initialize tries each candidate in order and adopts the first that
// initializes. Failed candidates are closed. Calling it again after a
// provider was adopted is a no-op.
func (r *Router) Initialize(ctx context.Context) InitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return InitResult{Provider: r.active.Name()}
	}

	var result InitResult
	for _, p := range r.candidates {
		err := r.initialize(ctx, p)
		result.Attempts = append(result.Attempts, InitAttempt{Provider: p.Name(), Err: err})
		if err == nil {
			r.active = p
			result.Provider = p.Name()
			r.logger.Info("storage provider initialized", slog.String("provider", p.Name()))
			return result
		}

		r.logger.Warn("storage provider unavailable, falling back",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
		)
		_ = p.Close()
	}

	r.logger.Error("no storage provider available, settings will not persist",
		slog.Int("attempts", len(result.Attempts)),
	)
	return result
}

func (r *Router) initialize(ctx context.Context, p storage.Provider) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return p.Initialize(ctx)
}

func (r *Router) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.OpTimeout)
}

func (r *Router) provider() storage.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Connected reports whether a provider is active
func (r *Router) Connected() bool {
	return r.provider() != nil
}

// ActiveProvider returns the active provider's name, or empty when
// disconnected
func (r *Router) ActiveProvider() string {
	if p := r.provider(); p != nil {
		return p.Name()
	}
	return ""
}

// Defaults returns fresh default settings for id
func (r *Router) Defaults(id model.PlayerID) model.PlayerSettings {
	return model.DefaultSettings(id, r.opts.DefaultLanguage)
}

// Save persists the preference fields of settings
func (r *Router) Save(ctx context.Context, settings model.PlayerSettings) SaveResult {
	p := r.provider()
	if p == nil {
		return SaveResult{Err: ErrDisconnected}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := p.SaveSettings(ctx, settings); err != nil {
		return SaveResult{Err: fmt.Errorf("%s: %w", p.Name(), err)}
	}
	return SaveResult{}
}

// Load never fails: a missing, unreadable or malformed record yields
// defaults. Failures other than a missing record are logged.
func (r *Router) Load(ctx context.Context, id model.PlayerID) LoadResult {
	p := r.provider()
	if p == nil {
		return LoadResult{Settings: r.Defaults(id), Err: ErrDisconnected}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	settings, err := p.LoadSettings(ctx, id)
	switch {
	case err == nil:
		settings.ID = id
		if settings.Language == "" {
			settings.Language = r.opts.DefaultLanguage
		}
		return LoadResult{Settings: settings, Found: true}
	case errors.Is(err, storage.ErrNotFound):
		return LoadResult{Settings: r.Defaults(id)}
	case errors.Is(err, storage.ErrMalformed):
		r.logger.Warn("stored settings malformed, using defaults",
			slog.String("provider", p.Name()),
			slog.String("player_id", string(id)),
			slog.String("error", err.Error()),
		)
	default:
		r.logger.Warn("failed to load settings, using defaults",
			slog.String("provider", p.Name()),
			slog.String("player_id", string(id)),
			slog.String("error", err.Error()),
		)
	}
	return LoadResult{Settings: r.Defaults(id), Err: err}
}

// GetCustomData returns the fields that resolved. Failed fields are logged
// and left out.
func (r *Router) GetCustomData(ctx context.Context, id model.PlayerID) CustomDataResult {
	p := r.provider()
	if p == nil {
		return CustomDataResult{Values: map[string]string{}, Err: ErrDisconnected}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	values, err := p.GetCustomData(ctx, id)
	if values == nil {
		values = map[string]string{}
	}
	if err != nil {
		r.logger.Warn("failed to load custom data",
			slog.String("provider", p.Name()),
			slog.String("player_id", string(id)),
			slog.Int("resolved", len(values)),
			slog.String("error", err.Error()),
		)
	}
	return CustomDataResult{Values: values, Err: err}
}

// BulkSave persists every record, through the provider's batch path when it
// has one
func (r *Router) BulkSave(ctx context.Context, settings []model.PlayerSettings) BulkResult {
	if len(settings) == 0 {
		return BulkResult{}
	}

	p := r.provider()
	if p == nil {
		return BulkResult{Failed: ids(settings), Err: ErrDisconnected}
	}

	if batch, ok := p.(storage.BatchSaver); ok {
		ctx, cancel := r.withTimeout(ctx)
		defer cancel()

		if err := batch.BulkSaveSettings(ctx, settings); err != nil {
			return BulkResult{Failed: ids(settings), Err: fmt.Errorf("%s: %w", p.Name(), err)}
		}
		return BulkResult{Saved: len(settings)}
	}

	var (
		result BulkResult
		errs   []error
	)
	for _, st := range settings {
		if res := r.Save(ctx, st); !res.OK() {
			result.Failed = append(result.Failed, st.ID)
			errs = append(errs, fmt.Errorf("player %s: %w", st.ID, res.Err))
			continue
		}
		result.Saved++
	}
	result.Err = errors.Join(errs...)
	return result
}

// Close releases the active provider
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	err := r.active.Close()
	r.active = nil
	return err
}

func ids(settings []model.PlayerSettings) []model.PlayerID {
	out := make([]model.PlayerID, len(settings))
	for i, st := range settings {
		out[i] = st.ID
	}
	return out
}
