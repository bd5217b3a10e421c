// Package handlers wires the message router to the game engines: it owns the
// per-room sessions, serializes access to each room's state, talks to the
// persistence stores and broadcasts results through the connection pool.
package handlers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/engine"
	"github.com/parlorgames/parlor-backend/internal/pool"
	"github.com/parlorgames/parlor-backend/internal/router"
	"github.com/parlorgames/parlor-backend/internal/store"
	"github.com/parlorgames/parlor-backend/internal/timer"
)

// stateTTL bounds how long a best-effort snapshot outlives its room.
const stateTTL = 24 * time.Hour

// storeTimeout caps every store call so a slow backend cannot stall a room.
const storeTimeout = 3 * time.Second

type gameSession struct {
	engine engine.Engine
	state  *internal.GameState
}

// Service is the handler set behind the router. One instance per process.
type Service struct {
	conns    *pool.Pool
	timers   *timer.Service
	registry *engine.Registry
	rooms    store.RoomStore
	states   store.StateStore
	limiter  *router.RateLimiter

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
	sessions  map[string]*gameSession
}

func New(conns *pool.Pool, timers *timer.Service, registry *engine.Registry, rooms store.RoomStore, states store.StateStore, limiter *router.RateLimiter) *Service {
	return &Service{
		conns:     conns,
		timers:    timers,
		registry:  registry,
		rooms:     rooms,
		states:    states,
		limiter:   limiter,
		roomLocks: make(map[string]*sync.Mutex),
		sessions:  make(map[string]*gameSession),
	}
}

// RegisterAll installs every handler on the router.
func (s *Service) RegisterAll(r *router.Router) {
	r.Register(internal.TypeJoinRoom, s.HandleJoinRoom)
	r.Register(internal.TypeLeaveRoom, s.HandleLeaveRoom)
	r.Register(internal.TypeChat, s.HandleChat)
	r.Register(internal.TypeGuess, s.HandleEngineMessage)
	r.Register(internal.TypeDraw, s.HandleEngineMessage)
	r.Register(internal.TypeGameAction, s.HandleEngineMessage)
	r.Register(internal.TypeNextRound, s.HandleEngineMessage)
	r.Register(internal.TypeStartGame, s.HandleStartGame)
	r.Register(internal.TypeEndGame, s.HandleEndGame)
	r.Register(internal.TypeUpdateSettings, s.HandleUpdateSettings)
	r.Register(internal.TypePing, s.HandlePing)
}

// withRoom runs fn while holding the room's lock. Every inbound message for a
// room is serialized through here, which is what keeps one authoritative
// GameState consistent without engine-level locking.
func (s *Service) withRoom(roomID string, fn func()) {
	s.mu.Lock()
	lock, ok := s.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		s.roomLocks[roomID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (s *Service) session(roomID string) *gameSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[roomID]
}

func (s *Service) putSession(roomID string, sess *gameSession) {
	s.mu.Lock()
	s.sessions[roomID] = sess
	s.mu.Unlock()
}

func (s *Service) dropSession(roomID string) {
	s.mu.Lock()
	delete(s.sessions, roomID)
	delete(s.roomLocks, roomID)
	s.mu.Unlock()
}

// deliver fans engine output out to the room: targeted messages go to their
// addressee, game-state snapshots are redacted per recipient, everything else
// is broadcast.
func (s *Service) deliver(sess *gameSession, msgs []internal.ServerMessage) {
	for _, msg := range msgs {
		switch {
		case msg.To != "":
			s.conns.Send(msg.To, msg)
		case msg.Type == internal.TypeGameState:
			s.broadcastState(sess)
		default:
			s.conns.BroadcastToRoom(msg.RoomID, msg, "")
		}
	}
}

// broadcastState sends each connected member their own view of the state.
func (s *Service) broadcastState(sess *gameSession) {
	roomID := sess.state.RoomID
	redactor, _ := sess.engine.(engine.Redactor)
	for _, playerID := range s.conns.RoomMembers(roomID) {
		view := sess.state
		if redactor != nil {
			view = redactor.RedactFor(sess.state, playerID)
		}
		s.conns.Send(playerID, internal.ServerMessage{
			Type:   internal.TypeGameState,
			RoomID: roomID,
			Data:   view,
		})
	}
}

// sendState sends one player their redacted snapshot.
func (s *Service) sendState(sess *gameSession, playerID string) {
	view := sess.state
	if redactor, ok := sess.engine.(engine.Redactor); ok {
		view = redactor.RedactFor(sess.state, playerID)
	}
	s.conns.Send(playerID, internal.ServerMessage{
		Type:   internal.TypeGameState,
		RoomID: sess.state.RoomID,
		Data:   view,
	})
}

// snapshot writes the state to the external store. Best effort only; a store
// outage never interrupts gameplay.
func (s *Service) snapshot(sess *gameSession) {
	if s.states == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.states.PutState(ctx, sess.state.RoomID, sess.state, stateTTL); err != nil {
		log.Printf("[snapshot] room %s: %v", sess.state.RoomID, err)
	}
}

// RoomSummary is one row of the public room listing.
type RoomSummary struct {
	RoomID      string             `json:"roomId"`
	GameType    internal.GameType  `json:"gameType"`
	Phase       internal.GamePhase `json:"phase"`
	PlayerCount int                `json:"playerCount"`
	MaxPlayers  int                `json:"maxPlayers"`
}

// RoomsAvailable lists rooms that still have a free seat.
func (s *Service) RoomsAvailable() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]RoomSummary, 0, len(s.sessions))
	for roomID, sess := range s.sessions {
		if len(sess.state.Players) >= internal.MaxPlayersPerRoom {
			continue
		}
		summaries = append(summaries, RoomSummary{
			RoomID:      roomID,
			GameType:    sess.state.GameType,
			Phase:       sess.state.Phase,
			PlayerCount: len(sess.state.Players),
			MaxPlayers:  internal.MaxPlayersPerRoom,
		})
	}
	return summaries
}
