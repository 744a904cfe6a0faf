// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// Position is a point in map pixel coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MapConfig 地图配置，只能由 GM 修改
type MapConfig struct {
	BackgroundImage string  `json:"backgroundImage"`
	GridSize        float64 `json:"gridSize"`
	SnapToGrid      bool    `json:"snapToGrid"`
	FogPersistent   bool    `json:"fogPersistent"`
	FogEnabled      bool    `json:"fogEnabled"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
}

// MapConfigPatch carries the fields of an UPDATE_MAP request. Nil fields are left untouched.
type MapConfigPatch struct {
	BackgroundImage *string  `json:"backgroundImage,omitempty"`
	GridSize        *float64 `json:"gridSize,omitempty"`
	SnapToGrid      *bool    `json:"snapToGrid,omitempty"`
	FogPersistent   *bool    `json:"fogPersistent,omitempty"`
	FogEnabled      *bool    `json:"fogEnabled,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
}

// Apply returns c with every non-nil field of p merged in.
func (c MapConfig) Apply(p MapConfigPatch) MapConfig {
	if p.BackgroundImage != nil {
		c.BackgroundImage = *p.BackgroundImage
	}
	if p.GridSize != nil {
		c.GridSize = *p.GridSize
	}
	if p.SnapToGrid != nil {
		c.SnapToGrid = *p.SnapToGrid
	}
	if p.FogPersistent != nil {
		c.FogPersistent = *p.FogPersistent
	}
	if p.FogEnabled != nil {
		c.FogEnabled = *p.FogEnabled
	}
	if p.Width != nil {
		c.Width = *p.Width
	}
	if p.Height != nil {
		c.Height = *p.Height
	}
	return c
}

// FogState is the serialized fog-of-war: the revealed grid cell ids, without duplicates.
type FogState struct {
	RevealedCells []string `json:"revealedCells"`
}

// MarshalJSON keeps an empty set as [] rather than null.
func (f FogState) MarshalJSON() ([]byte, error) {
	cells := f.RevealedCells
	if cells == nil {
		cells = []string{}
	}
	return json.Marshal(struct {
		RevealedCells []string `json:"revealedCells"`
	}{cells})
}

// Snapshot 房间可持久化的状态
type Snapshot struct {
	Config   *MapConfig `json:"config,omitempty"`
	Tokens   []*Token   `json:"tokens"`
	FogState FogState   `json:"fogState"`
}

// RoomRecord 数据库中的房间行
type RoomRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GMUserID  string    `json:"gmUserId"`
	State     Snapshot  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoomSummary is the control-plane listing view of a persisted room.
type RoomSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GMUserID  string    `json:"gmUserId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary drops the state blob.
func (r RoomRecord) Summary() RoomSummary {
	return RoomSummary{ID: r.ID, Name: r.Name, GMUserID: r.GMUserID, UpdatedAt: r.UpdatedAt}
}
