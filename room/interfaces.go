package room

import (
	"github.com/wfunc/tabletop/broadcast"
)

// Client 房间内的一个连接。每个 userID 同一时间最多一个
type Client interface {
	broadcast.Recipient
	UserID() string
}

// Broadcaster 房间通过它把一帧发给成员
type Broadcaster interface {
	Broadcast(recipients []broadcast.Recipient, data []byte, exclude broadcast.Recipient) int
	SendTo(recipient broadcast.Recipient, data []byte) bool
}
