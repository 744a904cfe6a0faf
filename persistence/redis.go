// persistence/redis.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/tabletop/models"
)

// Redis 每个房间一个 hash，另外按 GM 维护一个房间 id 集合
type Redis struct {
	client *redis.Client
	prefix string
}

// saveScript only touches rooms that still exist, so a late snapshot cannot resurrect a deleted room.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

// createScript claims the code and writes every field in one step, so a failed create leaves no partial hash.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('HSET', KEYS[1], 'name', ARGV[1], 'gm_user_id', ARGV[2], 'state', ARGV[3], 'created_at', ARGV[4], 'updated_at', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[5])
return 1
`)

func NewRedis(addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisWithClient(client, prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "tabletop"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) roomKey(roomID string) string {
	return r.prefix + ":room:" + roomID
}

func (r *Redis) gmKey(gmUserID string) string {
	return r.prefix + ":gm:" + gmUserID
}

func (r *Redis) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}

	rec := &models.RoomRecord{
		ID:        roomID,
		Name:      fields["name"],
		GMUserID:  fields["gm_user_id"],
		CreatedAt: parseRedisTime(fields["created_at"]),
		UpdatedAt: parseRedisTime(fields["updated_at"]),
	}
	if err := json.Unmarshal([]byte(fields["state"]), &rec.State); err != nil {
		return nil, fmt.Errorf("decode room %s state: %w", roomID, err)
	}
	return rec, nil
}

func (r *Redis) Save(ctx context.Context, roomID string, snapshot models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	updated, err := saveScript.Run(ctx, r.client, []string{r.roomKey(roomID)},
		string(data), formatRedisTime(time.Now())).Int()
	if err != nil {
		return fmt.Errorf("save room %s: %w", roomID, err)
	}
	if updated == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Redis) Create(ctx context.Context, roomID, name, gmUserID string) error {
	data, err := json.Marshal(emptySnapshot())
	if err != nil {
		return err
	}

	created, err := createScript.Run(ctx, r.client, []string{r.roomKey(roomID), r.gmKey(gmUserID)},
		name, gmUserID, string(data), formatRedisTime(time.Now()), roomID).Int()
	if err != nil {
		return fmt.Errorf("create room %s: %w", roomID, err)
	}
	if created == 0 {
		return ErrRoomExists
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, roomID string) error {
	key := r.roomKey(roomID)
	gmUserID, err := r.client.HGet(ctx, key, "gm_user_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, r.gmKey(gmUserID), roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

func (r *Redis) ListByGM(ctx context.Context, gmUserID string) ([]models.RoomSummary, error) {
	ids, err := r.client.SMembers(ctx, r.gmKey(gmUserID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, r.roomKey(id), "name", "gm_user_id", "updated_at")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	result := []models.RoomSummary{}
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 3 || vals[0] == nil {
			continue
		}
		name, _ := vals[0].(string)
		gm, _ := vals[1].(string)
		updated, _ := vals[2].(string)
		result = append(result, models.RoomSummary{
			ID:        ids[i],
			Name:      name,
			GMUserID:  gm,
			UpdatedAt: parseRedisTime(updated),
		})
	}
	sortSummaries(result)
	return result, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func formatRedisTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseRedisTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
