package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher sends host events. Used by hosts and by the CLI.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// NewPublisher creates a Publisher for the given subject prefix
func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix}
}

func (p *Publisher) publish(event string, ev PlayerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(p.prefix, event), data); err != nil {
		return fmt.Errorf("publishing %s: %w", event, err)
	}
	return nil
}

// Connect announces a player joining
func (p *Publisher) Connect(playerID string) error {
	return p.publish(EventConnect, PlayerEvent{PlayerID: playerID})
}

// Disconnect announces a player leaving
func (p *Publisher) Disconnect(playerID string) error {
	return p.publish(EventDisconnect, PlayerEvent{PlayerID: playerID})
}

// Tick announces a host tick
func (p *Publisher) Tick() error {
	if err := p.conn.Publish(Subject(p.prefix, EventTick), nil); err != nil {
		return fmt.Errorf("publishing %s: %w", EventTick, err)
	}
	return nil
}

// Command sends a player command and waits for the reply
func (p *Publisher) Command(ctx context.Context, playerID, command, arg string) (CommandReply, error) {
	data, err := json.Marshal(PlayerEvent{PlayerID: playerID, Command: command, Arg: arg})
	if err != nil {
		return CommandReply{}, err
	}

	msg, err := p.conn.RequestWithContext(ctx, Subject(p.prefix, EventCommand), data)
	if err != nil {
		return CommandReply{}, fmt.Errorf("sending command: %w", err)
	}

	var reply CommandReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return CommandReply{}, fmt.Errorf("decoding command reply: %w", err)
	}
	return reply, nil
}
