// persistence/memory.go
package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tabletop/models"
)

// Memory keeps rows in process memory. Used by the memory driver and tests.
type Memory struct {
	rows  map[string]memoryRow
	mutex sync.RWMutex
}

type memoryRow struct {
	record models.RoomRecord
	state  []byte
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]memoryRow)}
}

func (m *Memory) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	m.mutex.RLock()
	row, ok := m.rows[roomID]
	m.mutex.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}

	rec := row.record
	if err := json.Unmarshal(row.state, &rec.State); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Memory) Save(ctx context.Context, roomID string, snapshot models.Snapshot) error {
	// 序列化后保存，调用方之后修改快照不会影响已存数据
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	row, ok := m.rows[roomID]
	if !ok {
		return ErrRecordNotFound
	}
	row.state = data
	row.record.UpdatedAt = time.Now().UTC()
	m.rows[roomID] = row
	return nil
}

func (m *Memory) Create(ctx context.Context, roomID, name, gmUserID string) error {
	data, err := json.Marshal(emptySnapshot())
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rows[roomID]; exists {
		return ErrRoomExists
	}
	now := time.Now().UTC()
	m.rows[roomID] = memoryRow{
		record: models.RoomRecord{
			ID:        roomID,
			Name:      name,
			GMUserID:  gmUserID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		state: data,
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, roomID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rows[roomID]; !exists {
		return ErrRecordNotFound
	}
	delete(m.rows, roomID)
	return nil
}

func (m *Memory) ListByGM(ctx context.Context, gmUserID string) ([]models.RoomSummary, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := []models.RoomSummary{}
	for _, row := range m.rows {
		if row.record.GMUserID == gmUserID {
			result = append(result, row.record.Summary())
		}
	}
	sortSummaries(result)
	return result, nil
}

func (m *Memory) Close() error {
	return nil
}

func sortSummaries(rooms []models.RoomSummary) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].UpdatedAt.Equal(rooms[j].UpdatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
}
