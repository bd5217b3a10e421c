package internal

import (
	"encoding/json"
	"time"
)

const (
	MaxPlayersPerRoom = 8
	MinPlayersToStart = 2

	// Canonical canvas dimensions. Clients scale their local canvas to this
	// grid before sending drawing commands; anything outside is discarded.
	CanvasWidth  = 800
	CanvasHeight = 600

	DefaultMaxRounds        = 3
	DefaultRoundTimeSeconds = 75

	MinRounds           = 1
	MaxRounds           = 10
	MinRoundTimeSeconds = 60
	MaxRoundTimeSeconds = 90
)

type GamePhase string

const (
	PhaseWaiting  GamePhase = "waiting"
	PhasePlaying  GamePhase = "playing"
	PhaseResults  GamePhase = "results"
	PhaseFinished GamePhase = "finished"
)

type GameType string

const (
	GameTypeDrawing GameType = "drawing"
	GameTypePoker   GameType = "poker"
)

// ClientMessage is the envelope every client frame must carry.
type ClientMessage struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	PlayerID string          `json:"playerId"`
	Data     json.RawMessage `json:"data"`
}

// Client message types. Engines may recognize additional types (e.g. the
// poker engine's "game-action") through the same HandleClientMessage entry
// point.
const (
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeChat           = "chat"
	TypeGuess          = "guess"
	TypeDraw           = "draw"
	TypeStartGame      = "start-game"
	TypeNextRound      = "next-round"
	TypeEndGame        = "end-game"
	TypeUpdateSettings = "update-settings"
	TypePing           = "ping"
	TypeGameAction     = "game-action"

	// TypeRoundTick is synthesized by the round timer, never accepted from
	// clients.
	TypeRoundTick = "round-tick"
)

// ServerMessage is the envelope for everything sent to clients. To is set on
// messages addressed to a single player (e.g. poker hole cards) and never
// serialized.
type ServerMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`

	To string `json:"-"`
}

// Server message types.
const (
	TypeRoomUpdate      = "room-update"
	TypeChatMessage     = "chat-message"
	TypeGameState       = "game-state"
	TypeScoreUpdate     = "score-update"
	TypeDrawUpdateBatch = "draw-update-batch"
	TypeHostChanged     = "host-changed"
	TypeSettingsUpdated = "settings-updated"
	TypeError           = "error"
	TypePong            = "pong"
	TypePlayerJoined    = "player-joined"
	TypePlayerLeft      = "player-left"
	TypeTimerUpdate     = "timer-update"
	TypeRoundEnd        = "round-end"
	TypeGameEnded       = "game-ended"
)

// Response is the envelope for the small REST surface next to the websocket
// endpoint.
type Response struct {
	StatusCode    int   `json:"statusCode"`
	RespStartTime int64 `json:"respStartTime"`
	RespEndTime   int64 `json:"respEndTime"`
	NetRespTime   int64 `json:"netRespTime"`
	Data          any   `json:"data"`
}

// PlayerState is the per-player snapshot carried inside GameState. The
// authoritative copy lives in the room/player store.
type PlayerState struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IsHost       bool      `json:"isHost"`
	IsConnected  bool      `json:"isConnected"`
	LastActivity time.Time `json:"lastActivity"`
}

// GameSettings holds the host-tunable room settings. The blind/buy-in fields
// are only meaningful for poker rooms.
type GameSettings struct {
	MaxRounds        int `json:"maxRounds"`
	RoundTimeSeconds int `json:"roundTimeSeconds"`
	BuyIn            int `json:"buyIn,omitempty"`
	SmallBlind       int `json:"smallBlind,omitempty"`
	BigBlind         int `json:"bigBlind,omitempty"`
}

type ChatMessage struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// GameState is the single authoritative state of one room. Exactly one
// instance exists per active room and it is only mutated while the room's
// handler lock is held.
type GameState struct {
	RoomID        string         `json:"roomId"`
	GameType      GameType       `json:"gameType"`
	Phase         GamePhase      `json:"phase"`
	RoundNumber   int            `json:"roundNumber"`
	TimeRemaining int64          `json:"timeRemaining"` // milliseconds
	Players       []PlayerState  `json:"players"`
	Scores        map[string]int `json:"scores"`
	ChatMessages  []ChatMessage  `json:"chatMessages"`
	Settings      GameSettings   `json:"settings"`
	GameData      any            `json:"gameData,omitempty"`
}

// FindPlayer returns the index of the player with the given id, or -1.
func (s *GameState) FindPlayer(playerID string) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// HostID returns the current host's player id, or "" if the room has none.
func (s *GameState) HostID() string {
	for i := range s.Players {
		if s.Players[i].IsHost {
			return s.Players[i].ID
		}
	}
	return ""
}

type DrawingCommandKind string

const (
	DrawStart DrawingCommandKind = "start"
	DrawMove  DrawingCommandKind = "move"
	DrawEnd   DrawingCommandKind = "end"
	DrawClear DrawingCommandKind = "clear"
)

// DrawingCommand is one stroke event. Coordinates are in canonical canvas
// space; start/move require them, end/clear do not.
type DrawingCommand struct {
	Kind      DrawingCommandKind `json:"kind"`
	X         float64            `json:"x,omitempty"`
	Y         float64            `json:"y,omitempty"`
	Color     string             `json:"color,omitempty"`
	Size      float64            `json:"size,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// Valid reports whether the command is structurally acceptable: a known kind,
// and in-bounds coordinates when the kind requires them.
func (c DrawingCommand) Valid() bool {
	switch c.Kind {
	case DrawStart, DrawMove:
		return c.X >= 0 && c.X <= CanvasWidth && c.Y >= 0 && c.Y <= CanvasHeight
	case DrawEnd, DrawClear:
		return true
	default:
		return false
	}
}
