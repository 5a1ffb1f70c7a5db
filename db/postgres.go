package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Roygautam8852/SyncSpace/config"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			room_id    TEXT PRIMARY KEY,
			host_id    TEXT NOT NULL DEFAULT '',
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context, roomID string) (*config.Room, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx, `
		SELECT doc
		FROM rooms
		WHERE room_id = $1
	`, roomID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return decode(roomID, doc)
}

func (p *Postgres) Save(ctx context.Context, room *config.Room) error {
	room.UpdatedAt = time.Now()
	doc, err := encode(room)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO rooms (room_id, host_id, doc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id)
		DO UPDATE SET host_id = EXCLUDED.host_id, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, room.RoomID, room.Host, doc, room.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
