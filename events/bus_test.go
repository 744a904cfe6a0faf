package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutURLIsNoop(t *testing.T) {
	bus, err := Open("", "tabletop.rooms")
	require.NoError(t, err)
	assert.IsType(t, NoopBus{}, bus)

	assert.NoError(t, bus.PublishRoomDeleted(context.Background(), "AB12"))
	assert.NoError(t, bus.Subscribe(func(RoomEvent) { t.Fatal("noop bus delivered an event") }))
	assert.NoError(t, bus.Close())
}

func TestDecodeSkipsOwnAndMalformed(t *testing.T) {
	b := &NATSBus{origin: "self"}

	encode := func(ev RoomEvent) []byte {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		return data
	}

	_, ok := b.decode([]byte("{"))
	assert.False(t, ok)

	_, ok = b.decode(encode(RoomEvent{Kind: KindRoomDeleted, RoomID: "AB12", Origin: "self"}))
	assert.False(t, ok, "own events are already applied locally")

	_, ok = b.decode(encode(RoomEvent{Kind: KindRoomDeleted, Origin: "other"}))
	assert.False(t, ok)

	ev, ok := b.decode(encode(RoomEvent{Kind: KindRoomDeleted, RoomID: "AB12", Origin: "other", At: time.Unix(0, 0)}))
	require.True(t, ok)
	assert.Equal(t, "AB12", ev.RoomID)
	assert.Equal(t, KindRoomDeleted, ev.Kind)
}
