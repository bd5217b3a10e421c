package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
)

// Memory is an in-process implementation of both RoomStore and StateStore.
// It is the default when no external store is configured, and what the tests
// run against.
type Memory struct {
	mu      sync.RWMutex
	rooms   map[string]Room
	players map[string]map[string]PlayerRecord // roomID -> playerID -> record
	states  map[string]memoryState
}

type memoryState struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rooms:   make(map[string]Room),
		players: make(map[string]map[string]PlayerRecord),
		states:  make(map[string]memoryState),
	}
}

func (m *Memory) CreateRoom(ctx context.Context, room Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	if m.players[room.ID] == nil {
		m.players[room.ID] = make(map[string]PlayerRecord)
	}
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, roomID string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (m *Memory) UpdateRoom(ctx context.Context, room Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return ErrRoomNotFound
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *Memory) DeleteRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	delete(m.players, roomID)
	return nil
}

func (m *Memory) UpsertPlayer(ctx context.Context, player PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[player.RoomID] == nil {
		m.players[player.RoomID] = make(map[string]PlayerRecord)
	}
	m.players[player.RoomID][player.ID] = player
	return nil
}

func (m *Memory) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.players[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if _, ok := room[playerID]; !ok {
		return ErrPlayerNotFound
	}
	delete(room, playerID)
	return nil
}

func (m *Memory) RoomPlayers(ctx context.Context, roomID string) ([]PlayerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.players[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	records := make([]PlayerRecord, 0, len(room))
	for _, p := range room {
		records = append(records, p)
	}
	return records, nil
}

func (m *Memory) PutState(ctx context.Context, roomID string, state *internal.GameState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.states[roomID] = memoryState{payload: payload, expiresAt: expires}
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetState(ctx context.Context, roomID string) (*internal.GameState, error) {
	m.mu.RLock()
	entry, ok := m.states[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.states, roomID)
		m.mu.Unlock()
		return nil, ErrStateNotFound
	}
	var state internal.GameState
	if err := json.Unmarshal(entry.payload, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *Memory) DeleteState(ctx context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.states, roomID)
	m.mu.Unlock()
	return nil
}
