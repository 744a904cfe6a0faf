// events/bus.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wfunc/tabletop/logger"
)

const KindRoomDeleted = "room.deleted"

var ErrBusClosed = errors.New("event bus closed")

// RoomEvent 跨实例的房间生命周期事件
type RoomEvent struct {
	Kind   string    `json:"kind"`
	RoomID string    `json:"roomId"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Bus carries room lifecycle events between server instances. Handlers only
// see events published by other instances.
type Bus interface {
	PublishRoomDeleted(ctx context.Context, roomID string) error
	Subscribe(handler func(RoomEvent)) error
	Close() error
}

// NoopBus is used when no broker is configured; a single instance needs no fan-out.
type NoopBus struct{}

func (NoopBus) PublishRoomDeleted(context.Context, string) error { return nil }
func (NoopBus) Subscribe(func(RoomEvent)) error                  { return nil }
func (NoopBus) Close() error                                     { return nil }

type NATSBus struct {
	conn    *nats.Conn
	subject string
	origin  string
	sub     *nats.Subscription
}

func NewNATSBus(url, subject string) (*NATSBus, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("tabletop"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warnw("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Log.Infow("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBus{conn: conn, subject: subject, origin: uuid.NewString()}, nil
}

func (b *NATSBus) Origin() string {
	return b.origin
}

func (b *NATSBus) PublishRoomDeleted(ctx context.Context, roomID string) error {
	if b.conn.IsClosed() {
		return ErrBusClosed
	}
	data, err := json.Marshal(RoomEvent{Kind: KindRoomDeleted, RoomID: roomID, Origin: b.origin, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", b.subject, err)
	}
	// 确认服务端已收到
	return b.conn.FlushWithContext(ctx)
}

func (b *NATSBus) Subscribe(handler func(RoomEvent)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		ev, ok := b.decode(msg.Data)
		if !ok {
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	b.sub = sub
	return b.conn.Flush()
}

// decode drops malformed payloads and events published by this instance.
func (b *NATSBus) decode(data []byte) (RoomEvent, bool) {
	var ev RoomEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Log.Warnw("malformed room event", "error", err)
		return ev, false
	}
	if ev.Origin == b.origin || ev.RoomID == "" {
		return ev, false
	}
	return ev, true
}

func (b *NATSBus) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.conn.Close()
		return err
	}
	return nil
}

// Open returns a NATS bus for url, or a NoopBus when url is empty.
func Open(url, subject string) (Bus, error) {
	if url == "" {
		return NoopBus{}, nil
	}
	return NewNATSBus(url, subject)
}
