// Package events turns host events published over NATS into calls on the
// session controller. Message handlers only decode; the calls themselves run
// on the main loop.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/services/router"
	"github.com/mcoot/ingamehud/internal/task"
)

// Event names, appended to the subject prefix
const (
	EventConnect    = "player.connect"
	EventDisconnect = "player.disconnect"
	EventCommand    = "player.command"
	EventTick       = "tick"
)

// DefaultSubjectPrefix is used when none is configured
const DefaultSubjectPrefix = "hud"

// PlayerEvent is the payload of every player subject
type PlayerEvent struct {
	PlayerID string `json:"player_id"`
	Command  string `json:"command,omitempty"`
	Arg      string `json:"arg,omitempty"`
}

// CommandReply answers a command published with a reply subject
type CommandReply struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	HUDEnabled bool   `json:"hud_enabled"`
	Position   int    `json:"hud_position"`
	Language   string `json:"language"`
}

// Controller is the session surface driven by events
type Controller interface {
	OnPlayerConnect(id model.PlayerID) *task.Task[model.PlayerSettings]
	OnPlayerDisconnect(id model.PlayerID) *task.Task[router.SaveResult]
	OnSettingsCommand(id model.PlayerID, m model.Mutation) (model.PlayerSettings, *task.Task[router.SaveResult], error)
	OnTick()
}

// Poster hands work to the main loop
type Poster interface {
	Post(fn func())
}

// Subject joins the prefix and an event name
func Subject(prefix, event string) string {
	return prefix + "." + event
}

// Bridge subscribes to the event subjects
type Bridge struct {
	conn       *nats.Conn
	prefix     string
	loop       Poster
	controller Controller
	logger     *slog.Logger

	hostTicks bool

	mu   sync.Mutex
	subs []*nats.Subscription
}

// BridgeOpt configures a Bridge
type BridgeOpt func(*Bridge)

// WithHostTicks subscribes to the tick subject so the host paces OnTick.
// Without it the main loop's own frames drive ticks and tick events are
// not subscribed.
func WithHostTicks() BridgeOpt {
	return func(b *Bridge) {
		b.hostTicks = true
	}
}

// NewBridge creates a Bridge. Call Start to subscribe.
func NewBridge(conn *nats.Conn, prefix string, loop Poster, controller Controller, logger *slog.Logger, opts ...BridgeOpt) *Bridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	b := &Bridge{
		conn:       conn,
		prefix:     prefix,
		loop:       loop,
		controller: controller,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to every event subject
func (b *Bridge) Start() error {
	handlers := map[string]nats.MsgHandler{
		EventConnect:    b.handleConnect,
		EventDisconnect: b.handleDisconnect,
		EventCommand:    b.handleCommand,
	}
	if b.hostTicks {
		handlers[EventTick] = b.handleTick
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for event, handler := range handlers {
		sub, err := b.conn.Subscribe(Subject(b.prefix, event), handler)
		if err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("subscribing to %s: %w", event, err)
		}
		b.subs = append(b.subs, sub)
	}
	if err := b.conn.Flush(); err != nil {
		b.unsubscribeLocked()
		return fmt.Errorf("flushing subscriptions: %w", err)
	}

	b.logger.Info("event bridge subscribed",
		slog.String("prefix", b.prefix),
		slog.Bool("host_ticks", b.hostTicks),
	)
	return nil
}

// Close removes every subscription. The connection stays open.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked()
}

func (b *Bridge) unsubscribeLocked() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *Bridge) decode(msg *nats.Msg) (PlayerEvent, bool) {
	var ev PlayerEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.logger.Warn("dropping undecodable event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return PlayerEvent{}, false
	}
	if ev.PlayerID == "" {
		b.logger.Warn("dropping event without player_id", slog.String("subject", msg.Subject))
		return PlayerEvent{}, false
	}
	return ev, true
}

func (b *Bridge) handleConnect(msg *nats.Msg) {
	ev, ok := b.decode(msg)
	if !ok {
		return
	}
	b.loop.Post(func() {
		b.controller.OnPlayerConnect(model.PlayerID(ev.PlayerID))
	})
}

func (b *Bridge) handleDisconnect(msg *nats.Msg) {
	ev, ok := b.decode(msg)
	if !ok {
		return
	}
	b.loop.Post(func() {
		b.controller.OnPlayerDisconnect(model.PlayerID(ev.PlayerID))
	})
}

func (b *Bridge) handleCommand(msg *nats.Msg) {
	ev, ok := b.decode(msg)
	if !ok {
		return
	}

	m, err := model.ParseMutation(ev.Command, ev.Arg)
	if err != nil {
		b.reply(msg, CommandReply{Error: err.Error()})
		return
	}

	b.loop.Post(func() {
		settings, _, err := b.controller.OnSettingsCommand(model.PlayerID(ev.PlayerID), m)
		reply := CommandReply{
			OK:         err == nil,
			HUDEnabled: settings.HUDEnabled,
			Position:   int(settings.HUDPosition),
			Language:   settings.Language,
		}
		if err != nil {
			reply.Error = err.Error()
		}
		b.reply(msg, reply)
	})
}

func (b *Bridge) handleTick(*nats.Msg) {
	b.loop.Post(b.controller.OnTick)
}

func (b *Bridge) reply(msg *nats.Msg, reply CommandReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err == nil {
		err = msg.Respond(data)
	}
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.logger.Warn("failed to reply to command",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
	}
}
