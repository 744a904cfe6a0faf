// services/room_service.go
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/wfunc/tabletop/events"
	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/models"
	"github.com/wfunc/tabletop/persistence"
)

const (
	codeChars    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	createTries  = 8
	maxNameRunes = 100
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRoomNotFound   = errors.New("room not found")
	ErrCodeExhausted  = errors.New("could not allocate a unique room code")
)

// Evictor removes a live room from this process.
type Evictor interface {
	Evict(roomID string) bool
}

// RoomService 房间的控制面操作：创建、按 GM 列出、删除
type RoomService struct {
	store   persistence.Store
	rooms   Evictor
	bus     events.Bus
	newCode func() (string, error)
}

func NewRoomService(store persistence.Store, rooms Evictor, bus events.Bus) *RoomService {
	if bus == nil {
		bus = events.NoopBus{}
	}
	return &RoomService{
		store:   store,
		rooms:   rooms,
		bus:     bus,
		newCode: generateRoomCode,
	}
}

// Create persists an empty room under a fresh code, retrying on collision.
func (s *RoomService) Create(ctx context.Context, name, gmUserID string) (models.RoomSummary, error) {
	name = strings.TrimSpace(name)
	gmUserID = strings.TrimSpace(gmUserID)
	if name == "" || gmUserID == "" {
		return models.RoomSummary{}, fmt.Errorf("%w: name and gmUserId are required", ErrInvalidRequest)
	}
	if len([]rune(name)) > maxNameRunes {
		return models.RoomSummary{}, fmt.Errorf("%w: name longer than %d characters", ErrInvalidRequest, maxNameRunes)
	}

	for i := 0; i < createTries; i++ {
		code, err := s.newCode()
		if err != nil {
			return models.RoomSummary{}, err
		}
		err = s.store.Create(ctx, code, name, gmUserID)
		if errors.Is(err, persistence.ErrRoomExists) {
			logger.Log.Debugw("room code collision", "code", code)
			continue
		}
		if err != nil {
			return models.RoomSummary{}, fmt.Errorf("create room: %w", err)
		}
		logger.Log.Infow("room created", "room", code, "gm", gmUserID)
		return models.RoomSummary{ID: code, Name: name, GMUserID: gmUserID}, nil
	}
	return models.RoomSummary{}, ErrCodeExhausted
}

func (s *RoomService) List(ctx context.Context, gmUserID string) ([]models.RoomSummary, error) {
	gmUserID = strings.TrimSpace(gmUserID)
	if gmUserID == "" {
		return nil, fmt.Errorf("%w: gmUserId is required", ErrInvalidRequest)
	}
	rooms, err := s.store.ListByGM(ctx, gmUserID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes the row, evicts the live room here and tells the other instances.
func (s *RoomService) Delete(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}

	err := s.store.Delete(ctx, roomID)
	missing := errors.Is(err, persistence.ErrRecordNotFound)
	if err != nil && !missing {
		return fmt.Errorf("delete room: %w", err)
	}

	evicted := s.rooms.Evict(roomID)
	if missing && !evicted {
		return ErrRoomNotFound
	}

	if err := s.bus.PublishRoomDeleted(ctx, roomID); err != nil {
		// 其他实例上的房间会在空闲回收时消失，这里不算失败
		logger.Log.Warnw("publish room deleted failed", "room", roomID, "error", err)
	}
	logger.Log.Infow("room deleted", "room", roomID, "live", evicted)
	return nil
}

// HandleRoomEvent applies an event published by another instance.
func (s *RoomService) HandleRoomEvent(ev events.RoomEvent) {
	switch ev.Kind {
	case events.KindRoomDeleted:
		if s.rooms.Evict(ev.RoomID) {
			logger.Log.Infow("room evicted by remote delete", "room", ev.RoomID, "origin", ev.Origin)
		}
	default:
		logger.Log.Debugw("ignoring room event", "kind", ev.Kind)
	}
}

func generateRoomCode() (string, error) {
	limit := big.NewInt(int64(len(codeChars)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b[i] = codeChars[n.Int64()]
	}
	return string(b), nil
}
