// persistence/sql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/tabletop/models"
)

// sqlStore 基于 database/sql 的通用实现，PostgreSQL(lib/pq) 和 SQLite 共用
type sqlStore struct {
	db *sql.DB
	// placeholder renders the n-th (1-based) bind parameter for the driver.
	placeholder func(n int) string
}

func dollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func questionPlaceholder(int) string {
	return "?"
}

// rebind rewrites $n markers for drivers that use another syntax.
func (s *sqlStore) rebind(query string) string {
	for n := 9; n >= 1; n-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", n), s.placeholder(n))
	}
	return query
}

func (s *sqlStore) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	var (
		rec   models.RoomRecord
		state []byte
	)
	query := s.rebind(`SELECT id, name, gm_user_id, state, created_at, updated_at FROM rooms WHERE id = $1`)
	err := s.db.QueryRowContext(ctx, query, roomID).
		Scan(&rec.ID, &rec.Name, &rec.GMUserID, &state, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}

	if err := json.Unmarshal(state, &rec.State); err != nil {
		return nil, fmt.Errorf("decode room %s state: %w", roomID, err)
	}
	return &rec, nil
}

func (s *sqlStore) Save(ctx context.Context, roomID string, snapshot models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE rooms SET state = $1, updated_at = $2 WHERE id = $3`)
	res, err := s.db.ExecContext(ctx, query, string(data), time.Now().UTC(), roomID)
	if err != nil {
		return fmt.Errorf("save room %s: %w", roomID, err)
	}
	return expectAffected(res)
}

func (s *sqlStore) Create(ctx context.Context, roomID, name, gmUserID string) error {
	data, err := json.Marshal(emptySnapshot())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := s.rebind(`
        INSERT INTO rooms (id, name, gm_user_id, state, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO NOTHING
    `)
	res, err := s.db.ExecContext(ctx, query, roomID, name, gmUserID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("create room %s: %w", roomID, err)
	}
	if err := expectAffected(res); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrRoomExists
		}
		return err
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, roomID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM rooms WHERE id = $1`), roomID)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return expectAffected(res)
}

func (s *sqlStore) ListByGM(ctx context.Context, gmUserID string) ([]models.RoomSummary, error) {
	query := s.rebind(`SELECT id, name, gm_user_id, updated_at FROM rooms WHERE gm_user_id = $1 ORDER BY updated_at DESC, id`)
	rows, err := s.db.QueryContext(ctx, query, gmUserID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	result := []models.RoomSummary{}
	for rows.Next() {
		var r models.RoomSummary
		if err := rows.Scan(&r.ID, &r.Name, &r.GMUserID, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
