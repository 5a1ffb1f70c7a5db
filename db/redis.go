package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Roygautam8852/SyncSpace/config"
)

// Redis keeps each room document under room:<id>.
type Redis struct {
	rdb *redis.Client
}

func OpenRedis(ctx context.Context, addr string, dbIndex int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIndex,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

func roomKey(roomID string) string { return "room:" + roomID }

func (r *Redis) Load(ctx context.Context, roomID string) (*config.Room, error) {
	b, err := r.rdb.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return decode(roomID, b)
}

func (r *Redis) Save(ctx context.Context, room *config.Room) error {
	room.UpdatedAt = time.Now()
	b, err := encode(room)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, roomKey(room.RoomID), b, 0).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
