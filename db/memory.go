package db

import (
	"context"
	"sync"

	"github.com/Roygautam8852/SyncSpace/config"
)

// Memory keeps encoded documents so every Load hands out a private copy,
// the same isolation the real drivers give.
type Memory struct {
	mu    sync.Mutex
	rooms map[string][]byte

	// FailWith makes every call return the error. Tests use it to check
	// that fan-out does not depend on durability.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, roomID string) (*config.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	b, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return decode(roomID, b)
}

func (m *Memory) Save(_ context.Context, room *config.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	b, err := encode(room)
	if err != nil {
		return err
	}
	m.rooms[room.RoomID] = b
	return nil
}

func (m *Memory) Close() error { return nil }

// Fail sets or clears the injected error.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.FailWith = err
	m.mu.Unlock()
}
