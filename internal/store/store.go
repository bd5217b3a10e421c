// Package store holds the persistence interfaces behind the session engine:
// a Room/Player record store and a key-value game-state snapshot store. The
// engine treats both as best-effort collaborators; gameplay never blocks on
// them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrStateNotFound  = errors.New("game state not found")
)

// Room is the persistent record of one session.
type Room struct {
	ID         string            `json:"id"`
	GameType   internal.GameType `json:"gameType"`
	HostID     string            `json:"hostId"`
	MaxPlayers int               `json:"maxPlayers"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// PlayerRecord is the persistent record of one room membership.
type PlayerRecord struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"roomId"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomStore persists room and player records.
type RoomStore interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, roomID string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) error
	DeleteRoom(ctx context.Context, roomID string) error

	UpsertPlayer(ctx context.Context, player PlayerRecord) error
	RemovePlayer(ctx context.Context, roomID, playerID string) error
	RoomPlayers(ctx context.Context, roomID string) ([]PlayerRecord, error)
}

// StateStore is a key-value snapshot store for game states with TTL.
type StateStore interface {
	PutState(ctx context.Context, roomID string, state *internal.GameState, ttl time.Duration) error
	GetState(ctx context.Context, roomID string) (*internal.GameState, error)
	DeleteState(ctx context.Context, roomID string) error
}
