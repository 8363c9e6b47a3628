// Package session drives player settings through connect, command,
// disconnect and shutdown. Every exported method must be called from the
// main loop; storage work runs on goroutines and posts its results back.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/ingamehud/internal/dependencies/clock"
	"github.com/mcoot/ingamehud/internal/display"
	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/services/cache"
	"github.com/mcoot/ingamehud/internal/services/router"
	"github.com/mcoot/ingamehud/internal/task"
)

// Store is the storage surface the controller needs
type Store interface {
	Load(ctx context.Context, id model.PlayerID) router.LoadResult
	Save(ctx context.Context, settings model.PlayerSettings) router.SaveResult
	GetCustomData(ctx context.Context, id model.PlayerID) router.CustomDataResult
	BulkSave(ctx context.Context, settings []model.PlayerSettings) router.BulkResult
}

// Poster hands work to the main loop for the next frame
type Poster interface {
	Post(fn func())
}

// Options configures the Controller
type Options struct {
	DefaultLanguage    string
	SupportedLanguages []string

	// DisconnectTimeout bounds the save-then-evict flow of a disconnect
	DisconnectTimeout time.Duration
	// SaveAttempts is the number of tries for a disconnect save
	SaveAttempts int
	// RetryInterval is the first backoff between disconnect save attempts
	RetryInterval time.Duration

	// RefreshEveryTicks throttles display refreshes; zero disables them
	RefreshEveryTicks int
	// CustomDataEveryTicks throttles custom data reloads; zero disables them
	CustomDataEveryTicks int
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		DefaultLanguage:      "en",
		SupportedLanguages:   []string{"en", "zh"},
		DisconnectTimeout:    5 * time.Second,
		SaveAttempts:         3,
		RetryInterval:        200 * time.Millisecond,
		RefreshEveryTicks:    64,
		CustomDataEveryTicks: 64 * 30,
	}
}

// ErrShutdown resolves commands that were still waiting on a load when the
// controller shut down
var ErrShutdown = errors.New("controller shut down")

type player struct {
	phase Phase
	// generation changes on every connect so stale completions can tell
	// they were superseded
	generation uint64
	// deferred holds commands received while loading, replayed onto the
	// loaded record
	deferred     []deferredCommand
	pendingSaves int
	refreshing   bool
}

type deferredCommand struct {
	mutation model.Mutation
	complete func(router.SaveResult, error)
}

func resolveDeferred(deferred []deferredCommand, res router.SaveResult) {
	for _, d := range deferred {
		d.complete(res, nil)
	}
}

func replay(settings *model.PlayerSettings, deferred []deferredCommand) bool {
	changed := false
	for _, d := range deferred {
		if d.mutation.Apply(settings) {
			changed = true
		}
	}
	return changed
}

// Controller owns the cache and the per-player lifecycle
type Controller struct {
	store   Store
	loop    Poster
	display display.Display
	clock   clock.Clock
	opts    Options
	logger  *slog.Logger

	cache   *cache.Cache
	players map[model.PlayerID]*player
	chain   *opChain
	ticks   uint64
}

// New creates a Controller with an empty cache
func New(store Store, loop Poster, disp display.Display, clk clock.Clock, opts Options, logger *slog.Logger) *Controller {
	if opts.SaveAttempts < 1 {
		opts.SaveAttempts = 1
	}
	return &Controller{
		store:   store,
		loop:    loop,
		display: disp,
		clock:   clk,
		opts:    opts,
		logger:  logger,
		cache:   cache.New(opts.DefaultLanguage),
		players: make(map[model.PlayerID]*player),
		chain:   newOpChain(),
	}
}

// OnPlayerConnect starts loading a player's settings. The task resolves on
// the main loop once the cache holds the entry. Connecting an id that is
// already connected reloads it from storage.
func (c *Controller) OnPlayerConnect(id model.PlayerID) *task.Task[model.PlayerSettings] {
	if id == "" {
		return task.Completed(model.PlayerSettings{}, model.ErrEmptyPlayerID)
	}

	p, ok := c.players[id]
	if !ok {
		p = &player{}
		c.players[id] = p
	}
	p.generation++
	p.phase = PhaseLoading
	gen := p.generation
	started := c.clock.Now()

	t, complete := task.New[model.PlayerSettings]()
	c.chain.enqueue(context.Background(), id, func() {
		ctx := context.Background()
		loaded := c.store.Load(ctx, id)
		custom := c.store.GetCustomData(ctx, id)

		c.loop.Post(func() {
			complete(c.finishConnect(id, p, gen, started, loaded, custom), nil)
		})
	})
	return t
}

func (c *Controller) finishConnect(id model.PlayerID, p *player, gen uint64, started time.Time, loaded router.LoadResult, custom router.CustomDataResult) model.PlayerSettings {
	if c.players[id] != p || p.generation != gen || p.phase == PhaseDisconnecting {
		return c.CurrentSettings(id)
	}

	settings := loaded.Settings
	if existing, ok := c.cache.Get(id); ok {
		copyDerived(&settings, existing)
	}
	settings.ApplyCustomData(custom.Values)

	deferred := p.deferred
	p.deferred = nil
	if replay(&settings, deferred) {
		settings.LastUpdated = c.clock.Now()
	}
	c.cache.Put(settings)

	p.phase = PhaseReady
	if p.pendingSaves > 0 {
		p.phase = PhaseSaving
	}
	if len(deferred) > 0 {
		c.scheduleSave(id, p, settings, deferred)
		if !settings.HUDEnabled {
			c.display.Remove(id)
		}
	}

	c.logger.Debug("player settings loaded",
		slog.String("player_id", string(id)),
		slog.Bool("found", loaded.Found),
		slog.Int("custom_fields", len(custom.Values)),
		slog.Duration("took", c.clock.Since(started)),
	)

	if settings.HUDEnabled {
		c.loop.Post(func() {
			c.refreshDisplay(id)
		})
	}
	return settings.Clone()
}

// OnSettingsCommand applies a player's command to the cache immediately and
// queues a save. Invalid commands change nothing. The save never rolls the
// cache back; its task resolves on the main loop. Commands for a player
// still loading are held and replayed onto the loaded record.
func (c *Controller) OnSettingsCommand(id model.PlayerID, m model.Mutation) (model.PlayerSettings, *task.Task[router.SaveResult], error) {
	if id == "" {
		return model.PlayerSettings{}, nil, model.ErrEmptyPlayerID
	}
	if err := m.Validate(c.opts.SupportedLanguages); err != nil {
		return c.CurrentSettings(id), nil, err
	}

	p, ok := c.players[id]
	if !ok {
		// Command raced ahead of connect
		p = &player{phase: PhaseReady}
		c.players[id] = p
	}

	if p.phase == PhaseLoading {
		t, complete := task.New[router.SaveResult]()
		p.deferred = append(p.deferred, deferredCommand{mutation: m, complete: complete})

		preview := c.CurrentSettings(id)
		replay(&preview, p.deferred)
		c.logger.Debug("player settings command deferred until load",
			slog.String("player_id", string(id)),
			slog.String("command", string(m.Kind)),
		)
		return preview.Clone(), t, nil
	}

	settings := c.cache.GetOrDefault(id)
	if m.Apply(&settings) {
		settings.LastUpdated = c.clock.Now()
	}
	c.cache.Put(settings)

	if p.phase != PhaseDisconnecting {
		if settings.HUDEnabled {
			c.display.Show(settings)
		} else {
			c.display.Remove(id)
		}
	}

	c.logger.Debug("player settings changed",
		slog.String("player_id", string(id)),
		slog.String("command", string(m.Kind)),
	)

	return settings.Clone(), c.scheduleSave(id, p, settings, nil), nil
}

func (c *Controller) scheduleSave(id model.PlayerID, p *player, settings model.PlayerSettings, deferred []deferredCommand) *task.Task[router.SaveResult] {
	p.pendingSaves++
	if p.phase == PhaseReady {
		p.phase = PhaseSaving
	}

	t, complete := task.New[router.SaveResult]()
	c.chain.enqueue(context.Background(), id, func() {
		res := c.store.Save(context.Background(), settings)
		if !res.OK() && !errors.Is(res.Err, router.ErrDisconnected) {
			c.logger.Warn("failed to save player settings",
				slog.String("player_id", string(id)),
				slog.String("error", res.Err.Error()),
			)
		}

		c.loop.Post(func() {
			p.pendingSaves--
			if p.pendingSaves == 0 && p.phase == PhaseSaving {
				p.phase = PhaseReady
			}
			complete(res, nil)
			resolveDeferred(deferred, res)
		})
	})
	return t
}

// OnPlayerDisconnect hides the HUD, saves the entry after any queued work
// for the player, and evicts it. The whole flow is bounded by the disconnect
// timeout; eviction happens even when the save fails.
func (c *Controller) OnPlayerDisconnect(id model.PlayerID) *task.Task[router.SaveResult] {
	p, known := c.players[id]
	settings, cached := c.cache.Get(id)
	if !known && !cached {
		return task.Completed(router.SaveResult{}, nil)
	}
	if !known {
		p = &player{}
		c.players[id] = p
	}

	c.display.Remove(id)
	p.phase = PhaseDisconnecting
	gen := p.generation
	deferred := p.deferred
	p.deferred = nil
	now := c.clock.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DisconnectTimeout)
	t, complete := task.New[router.SaveResult]()
	c.chain.enqueue(ctx, id, func() {
		defer cancel()

		// Nothing to save if the load never completed and no command
		// arrived meanwhile
		var res router.SaveResult
		if cached || len(deferred) > 0 {
			res = c.boundedSave(ctx, id, func(ctx context.Context) (model.PlayerSettings, bool) {
				if !cached {
					loaded := c.store.Load(ctx, id)
					if errors.Is(loaded.Err, router.ErrDisconnected) {
						return model.PlayerSettings{}, false
					}
					settings = loaded.Settings
				}
				if replay(&settings, deferred) {
					settings.LastUpdated = now
				}
				return settings, true
			})
		}

		c.loop.Post(func() {
			c.finishDisconnect(id, p, gen)
			complete(res, nil)
			resolveDeferred(deferred, res)
		})
	})
	return t
}

// boundedSave runs the disconnect save on its own goroutine so a store that
// ignores ctx cannot hold up eviction past the deadline. Exactly one error is
// logged when the changes are lost.
func (c *Controller) boundedSave(ctx context.Context, id model.PlayerID, prepare func(context.Context) (model.PlayerSettings, bool)) router.SaveResult {
	type outcome struct {
		res      router.SaveResult
		attempts int
	}
	done := make(chan outcome, 1)
	go func() {
		settings, ok := prepare(ctx)
		if !ok {
			done <- outcome{res: router.SaveResult{Err: router.ErrDisconnected}}
			return
		}
		res, attempts := c.saveWithRetry(ctx, settings)
		done <- outcome{res: res, attempts: attempts}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{res: router.SaveResult{Err: fmt.Errorf("disconnect save: %w", ctx.Err())}}
	}

	if out.res.OK() || errors.Is(out.res.Err, router.ErrDisconnected) {
		return out.res
	}
	c.logger.Error("failed to persist settings on disconnect, changes lost",
		slog.String("player_id", string(id)),
		slog.Int("attempts", out.attempts),
		slog.String("error", out.res.Err.Error()),
	)
	return out.res
}

func (c *Controller) finishDisconnect(id model.PlayerID, p *player, gen uint64) {
	if cur, ok := c.players[id]; ok && (cur != p || p.generation != gen) {
		// Reconnected while the save was running
		return
	}
	c.cache.Remove(id)
	delete(c.players, id)
	c.logger.Debug("player evicted", slog.String("player_id", string(id)))
}

func (c *Controller) saveWithRetry(ctx context.Context, settings model.PlayerSettings) (router.SaveResult, int) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.RetryInterval
	expo.MaxElapsedTime = 0
	expo.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.opts.SaveAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		res := c.store.Save(ctx, settings)
		if res.OK() {
			return nil
		}
		if errors.Is(res.Err, router.ErrDisconnected) {
			return backoff.Permanent(res.Err)
		}
		c.logger.Debug("disconnect save attempt failed",
			slog.String("player_id", string(settings.ID)),
			slog.Int("attempt", attempt),
			slog.String("error", res.Err.Error()),
		)
		return res.Err
	}, b)

	if err == nil {
		return router.SaveResult{}, attempt
	}
	return router.SaveResult{Err: err}, attempt
}

// OnTick counts host ticks and periodically refreshes displays and custom
// data of live players with the HUD enabled
func (c *Controller) OnTick() {
	c.ticks++
	refresh := every(c.ticks, c.opts.RefreshEveryTicks)
	reload := every(c.ticks, c.opts.CustomDataEveryTicks)
	if !refresh && !reload {
		return
	}

	c.cache.ForEach(func(s model.PlayerSettings) {
		p, ok := c.players[s.ID]
		if !ok || !p.phase.live() || !s.HUDEnabled {
			return
		}
		if refresh {
			c.display.Show(s)
		}
		if reload && !p.refreshing {
			c.reloadCustomData(s.ID, p)
		}
	})
}

func every(tick uint64, n int) bool {
	return n > 0 && tick%uint64(n) == 0
}

func (c *Controller) reloadCustomData(id model.PlayerID, p *player) {
	p.refreshing = true
	c.chain.enqueue(context.Background(), id, func() {
		res := c.store.GetCustomData(context.Background(), id)

		c.loop.Post(func() {
			p.refreshing = false
			if c.players[id] != p || !p.phase.live() {
				return
			}
			s, ok := c.cache.Get(id)
			if !ok {
				return
			}
			s.ApplyCustomData(res.Values)
			c.cache.Put(s)
			if s.HUDEnabled {
				c.display.Show(s)
			}
		})
	})
}

// OnShutdown waits for queued storage work, flushes every cached entry in one
// batch and clears all state. Failures are logged and shutdown proceeds.
func (c *Controller) OnShutdown(ctx context.Context) router.BulkResult {
	if err := c.chain.wait(ctx); err != nil {
		c.logger.Warn("storage work still running at shutdown",
			slog.Int("players", c.chain.len()),
			slog.String("error", err.Error()),
		)
	}

	snapshot := c.cache.Snapshot()
	for _, s := range snapshot {
		c.display.Remove(s.ID)
	}

	res := c.store.BulkSave(ctx, snapshot)
	switch {
	case res.OK():
		c.logger.Info("player settings flushed", slog.Int("saved", res.Saved))
	case errors.Is(res.Err, router.ErrDisconnected):
		c.logger.Warn("storage unavailable, player settings not flushed", slog.Int("players", len(snapshot)))
	default:
		c.logger.Error("failed to flush player settings",
			slog.Int("saved", res.Saved),
			slog.Int("failed", len(res.Failed)),
			slog.String("error", res.Err.Error()),
		)
	}

	for _, p := range c.players {
		resolveDeferred(p.deferred, router.SaveResult{Err: ErrShutdown})
		p.deferred = nil
	}
	c.cache.Clear()
	clear(c.players)
	return res
}

// OnHotReload flushes like a shutdown and then reconnects the given players
func (c *Controller) OnHotReload(ctx context.Context, ids []model.PlayerID) router.BulkResult {
	res := c.OnShutdown(ctx)
	for _, id := range ids {
		c.OnPlayerConnect(id)
	}
	return res
}

func (c *Controller) refreshDisplay(id model.PlayerID) {
	p, ok := c.players[id]
	if !ok || !p.phase.live() {
		return
	}
	if s, ok := c.cache.Get(id); ok && s.HUDEnabled {
		c.display.Show(s)
	}
}

// CurrentSettings returns the cached settings for id, or defaults when the
// player has no entry
func (c *Controller) CurrentSettings(id model.PlayerID) model.PlayerSettings {
	if s, ok := c.cache.Get(id); ok {
		return s
	}
	return model.DefaultSettings(id, c.opts.DefaultLanguage)
}

// Phase returns the lifecycle phase of id
func (c *Controller) Phase(id model.PlayerID) Phase {
	if p, ok := c.players[id]; ok {
		return p.phase
	}
	return PhaseDisconnected
}

// Connected returns the ids the controller is tracking, in sorted order
func (c *Controller) Connected() []model.PlayerID {
	ids := make([]model.PlayerID, 0, len(c.players))
	for id := range c.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Cached reports how many entries the cache holds
func (c *Controller) Cached() int {
	return c.cache.Len()
}

// Pending reports how many players have storage work queued
func (c *Controller) Pending() int {
	return c.chain.len()
}

func copyDerived(dst *model.PlayerSettings, src model.PlayerSettings) {
	dst.Credits = src.Credits
	dst.PlaytimeSeconds = src.PlaytimeSeconds
	dst.LastSignIn = src.LastSignIn
	dst.Custom = src.Custom
}
