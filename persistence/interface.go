// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/tabletop/models"
)

// Store 房间持久化接口。只保存快照，内存中的房间才是权威状态
type Store interface {
	// Load returns ErrRecordNotFound when the room was never created.
	Load(ctx context.Context, roomID string) (*models.RoomRecord, error)
	// Save overwrites the snapshot of an existing row; ErrRecordNotFound otherwise.
	Save(ctx context.Context, roomID string, snapshot models.Snapshot) error
	// Create inserts an empty room; ErrRoomExists when the id is taken.
	Create(ctx context.Context, roomID, name, gmUserID string) error
	Delete(ctx context.Context, roomID string) error
	// ListByGM returns the rooms owned by gmUserID, most recently updated first.
	ListByGM(ctx context.Context, gmUserID string) ([]models.RoomSummary, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRoomExists     = errors.New("room already exists")
)

func emptySnapshot() models.Snapshot {
	return models.Snapshot{
		Tokens:   []*models.Token{},
		FogState: models.FogState{RevealedCells: []string{}},
	}
}
