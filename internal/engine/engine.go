// Package engine defines the per-game-type state machine contract and the
// registry mapping game-type identifiers to engine factories.
package engine

import (
	"fmt"
	"sync"

	"github.com/parlorgames/parlor-backend/internal"
)

// Engine is the pluggable state machine behind one room's game. Every
// implementation keeps all game state inside the GameState it is handed;
// HandleClientMessage in particular must be a pure function of its inputs so
// engines stay independently testable.
type Engine interface {
	// InitializeGame builds the initial state in phase "waiting" with zero
	// scores.
	InitializeGame(roomID string, players []internal.PlayerState, settings internal.GameSettings) *internal.GameState

	// StartGame transitions to "playing", resets the round to 1 and seeds
	// first-turn data.
	StartGame(state *internal.GameState) *internal.GameState

	// HandleClientMessage is the single mutation entry point for in-game
	// client messages, returning the updated state and the server messages
	// to deliver.
	HandleClientMessage(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error)

	// ValidateGameAction reports whether the player may perform the action
	// in the current state.
	ValidateGameAction(state *internal.GameState, playerID, action string) bool

	// AddPlayer and RemovePlayer apply mid-game roster changes. A departure
	// can resolve the current round, so RemovePlayer also returns the server
	// messages that resolution produced.
	AddPlayer(state *internal.GameState, player internal.PlayerState) *internal.GameState
	RemovePlayer(state *internal.GameState, playerID string) (*internal.GameState, []internal.ServerMessage)

	// CalculateScore returns the points the action is worth for the player
	// in the current state.
	CalculateScore(state *internal.GameState, playerID, action string) int

	// EndGame moves the state to its terminal "finished" phase and releases
	// engine-internal resources such as pending batch timers.
	EndGame(state *internal.GameState) *internal.GameState
}

// Redactor is implemented by engines whose state carries information that
// must not reach every player (the drawing word, poker hole cards). The
// handlers consult it before broadcasting game-state snapshots.
type Redactor interface {
	RedactFor(state *internal.GameState, playerID string) *internal.GameState
}

// Metadata describes a registered game type.
type Metadata struct {
	MinPlayers      int
	MaxPlayers      int
	DefaultSettings internal.GameSettings
}

// Factory builds a fresh engine instance for one room.
type Factory func() Engine

type entry struct {
	factory Factory
	meta    Metadata
}

// Registry maps game-type identifiers to engine factories and metadata. One
// instance is created at bootstrap and threaded through constructors; there
// is no package-level singleton.
type Registry struct {
	mu      sync.RWMutex
	entries map[internal.GameType]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[internal.GameType]entry)}
}

// Register installs a factory for a game type. Re-registering an identifier
// replaces the prior entry, allowing implementations to be swapped.
func (r *Registry) Register(gt internal.GameType, factory Factory, meta Metadata) {
	r.mu.Lock()
	r.entries[gt] = entry{factory: factory, meta: meta}
	r.mu.Unlock()
}

// NewEngine builds an engine instance for the game type.
func (r *Registry) NewEngine(gt internal.GameType) (Engine, error) {
	r.mu.RLock()
	e, ok := r.entries[gt]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown game type %q", gt)
	}
	return e.factory(), nil
}

// Metadata returns the registered metadata for the game type.
func (r *Registry) Metadata(gt internal.GameType) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[gt]
	return e.meta, ok
}

// Types lists the registered game-type identifiers.
func (r *Registry) Types() []internal.GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]internal.GameType, 0, len(r.entries))
	for gt := range r.entries {
		types = append(types, gt)
	}
	return types
}
