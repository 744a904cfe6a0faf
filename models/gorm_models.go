// models/gorm_models.go
package models

import "time"

// RoomModel 房间表，一行一个房间，state 为 JSON 快照
type RoomModel struct {
	ID        string   `gorm:"primaryKey;size:32"`
	Name      string   `gorm:"not null"`
	GMUserID  string   `gorm:"column:gm_user_id;index;not null"`
	State     Snapshot `gorm:"serializer:json;type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table shared with the raw SQL backends.
func (RoomModel) TableName() string {
	return "rooms"
}

// Record converts the row into the storage-neutral form.
func (m RoomModel) Record() *RoomRecord {
	return &RoomRecord{
		ID:        m.ID,
		Name:      m.Name,
		GMUserID:  m.GMUserID,
		State:     m.State,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
