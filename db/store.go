package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Roygautam8852/SyncSpace/config"
)

var ErrRoomNotFound = errors.New("room not found")

// Store is the room-state boundary: whole-document load and upsert,
// last write wins.
type Store interface {
	Load(ctx context.Context, roomID string) (*config.Room, error)
	Save(ctx context.Context, room *config.Room) error
	Close() error
}

// Open picks a driver by name.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.PGURL)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// LoadOrCreate loads a room and, when create is set, starts an empty one
// hosted by hostID if it does not exist yet.
func LoadOrCreate(ctx context.Context, s Store, roomID, hostID string, create bool) (*config.Room, error) {
	room, err := s.Load(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrRoomNotFound) || !create {
		return nil, err
	}

	now := time.Now()
	room = &config.Room{
		RoomID:          roomID,
		RoomName:        roomID,
		Host:            hostID,
		IsActive:        true,
		MaxParticipants: 10,
		ChatHistory:     []config.ChatMessage{},
		UpdatedAt:       now,
	}
	if hostID != "" {
		room.Participants = []config.RoomParticipant{{
			User:     hostID,
			Role:     config.RoleHost,
			JoinedAt: now,
		}}
	}
	return room, nil
}

func encode(room *config.Room) ([]byte, error) {
	b, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", room.RoomID, err)
	}
	return b, nil
}

func decode(roomID string, b []byte) (*config.Room, error) {
	var room config.Room
	if err := json.Unmarshal(b, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}
