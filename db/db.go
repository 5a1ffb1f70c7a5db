package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Roygautam8852/SyncSpace/config"
)

// SQLite stores one JSON document per room.
type SQLite struct {
	db       *sql.DB
	stmtLoad *sql.Stmt
	stmtSave *sql.Stmt
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA busy_timeout = 5000; -- Wait 5s if db is locked
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			host_id TEXT NOT NULL DEFAULT '',
			doc BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
    `)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	stmtLoad, err := db.PrepareContext(ctx, `
		SELECT doc
		FROM rooms
		WHERE room_id = ?
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	stmtSave, err := db.PrepareContext(ctx, `
		INSERT INTO rooms (room_id, host_id, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id)
		DO UPDATE SET
			host_id = excluded.host_id,
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		stmtLoad.Close()
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, stmtLoad: stmtLoad, stmtSave: stmtSave}, nil
}

func (s *SQLite) Load(ctx context.Context, roomID string) (*config.Room, error) {
	var doc []byte
	err := s.stmtLoad.QueryRowContext(ctx, roomID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return decode(roomID, doc)
}

func (s *SQLite) Save(ctx context.Context, room *config.Room) error {
	room.UpdatedAt = time.Now()
	doc, err := encode(room)
	if err != nil {
		return err
	}
	if _, err := s.stmtSave.ExecContext(ctx,
		room.RoomID, room.Host, doc, room.UpdatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.stmtLoad.Close()
	s.stmtSave.Close()
	return s.db.Close()
}
