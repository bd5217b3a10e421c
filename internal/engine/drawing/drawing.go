// Package drawing implements the drawing-and-guessing game engine: one
// player draws a secret word, everyone else races to guess it in chat.
package drawing

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/engine"
	"github.com/parlorgames/parlor-backend/internal/utils"
)

// GuessedMarker replaces the literal guess text in chat history so the word
// never leaks to players still guessing.
const GuessedMarker = "guessed the word!"

// DrawerBonus is awarded to the drawer for each player that guesses the word.
const DrawerBonus = 25

// RoundData is the drawing-specific slice of GameState.GameData.
type RoundData struct {
	CurrentDrawer  string                    `json:"currentDrawer"`
	CurrentWord    string                    `json:"currentWord"`
	Commands       []internal.DrawingCommand `json:"drawingData"`
	CorrectGuesses []string                  `json:"correctGuesses"`
}

func (d *RoundData) guessedAlready(playerID string) bool {
	for _, id := range d.CorrectGuesses {
		if id == playerID {
			return true
		}
	}
	return false
}

type guessPayload struct {
	Text string `json:"text"`
}

// Engine runs one room's drawing game. The batcher is the engine's only
// internal resource; all game state lives in the GameState it is handed.
type Engine struct {
	batch *Batcher
}

func New() *Engine {
	return &Engine{batch: NewBatcher(DefaultBatchSize, DefaultBatchTimeout)}
}

// NewFactory returns the registry factory for the drawing game type.
func NewFactory() engine.Factory {
	return func() engine.Engine { return New() }
}

// Metadata describes the drawing game for the registry.
func Metadata() engine.Metadata {
	return engine.Metadata{
		MinPlayers: internal.MinPlayersToStart,
		MaxPlayers: internal.MaxPlayersPerRoom,
		DefaultSettings: internal.GameSettings{
			MaxRounds:        internal.DefaultMaxRounds,
			RoundTimeSeconds: internal.DefaultRoundTimeSeconds,
		},
	}
}

// SetBatchSink wires the flush destination for coalesced draw batches. The
// handlers point this at the room broadcaster after creating the session.
func (e *Engine) SetBatchSink(sink func(commands []internal.DrawingCommand)) {
	e.batch.SetSink(sink)
}

func (e *Engine) InitializeGame(roomID string, players []internal.PlayerState, settings internal.GameSettings) *internal.GameState {
	if settings.MaxRounds == 0 {
		settings.MaxRounds = internal.DefaultMaxRounds
	}
	if settings.RoundTimeSeconds == 0 {
		settings.RoundTimeSeconds = internal.DefaultRoundTimeSeconds
	}
	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p.ID] = 0
	}
	return &internal.GameState{
		RoomID:   roomID,
		GameType: internal.GameTypeDrawing,
		Phase:    internal.PhaseWaiting,
		Players:  append([]internal.PlayerState(nil), players...),
		Scores:   scores,
		Settings: settings,
		GameData: &RoundData{},
	}
}

func (e *Engine) StartGame(state *internal.GameState) *internal.GameState {
	if len(state.Players) == 0 {
		return state
	}
	state.Phase = internal.PhasePlaying
	state.RoundNumber = 1
	state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
	state.GameData = &RoundData{
		CurrentDrawer: state.Players[0].ID,
		CurrentWord:   wordFor(state.RoomID, 1),
	}
	return state
}

func (e *Engine) HandleClientMessage(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	switch msg.Type {
	case internal.TypeDraw:
		return e.handleDraw(state, msg)
	case internal.TypeGuess:
		return e.handleGuess(state, msg)
	case internal.TypeNextRound:
		return e.handleNextRound(state, msg)
	case internal.TypeRoundTick:
		return e.handleTick(state)
	default:
		return state, nil, &internal.ValidationError{Reason: "unsupported message type for drawing game"}
	}
}

func (e *Engine) handleDraw(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	data := roundData(state)
	if state.Phase != internal.PhasePlaying || msg.PlayerID != data.CurrentDrawer {
		// Dropped without an error reply so turn state does not leak to a
		// misbehaving client.
		return state, nil, nil
	}
	var cmd internal.DrawingCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil || !cmd.Valid() {
		return state, nil, nil
	}
	data.Commands = append(data.Commands, cmd)
	e.batch.Add(cmd)
	return state, nil, nil
}

func (e *Engine) handleGuess(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	if state.Phase != internal.PhasePlaying {
		return state, nil, &internal.ValidationError{Reason: "guessing is only allowed during play"}
	}
	data := roundData(state)
	idx := state.FindPlayer(msg.PlayerID)
	if idx < 0 {
		return state, nil, &internal.AuthorizationError{Reason: "player is not in this room"}
	}
	var payload guessPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return state, nil, &internal.ValidationError{Reason: "malformed guess payload"}
	}

	player := state.Players[idx]
	guess := strings.ToLower(strings.TrimSpace(payload.Text))
	matched := guess == strings.ToLower(data.CurrentWord)
	correct := matched && msg.PlayerID != data.CurrentDrawer

	// Mask any utterance of the word, the drawer's included, so the answer
	// never reaches the chat log.
	text := payload.Text
	if matched {
		text = GuessedMarker
	}
	chat := internal.ChatMessage{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
	state.ChatMessages = append(state.ChatMessages, chat)
	out := []internal.ServerMessage{{
		Type:   internal.TypeChatMessage,
		RoomID: state.RoomID,
		Data:   chat,
	}}

	if !correct || data.guessedAlready(msg.PlayerID) {
		return state, out, nil
	}

	data.CorrectGuesses = append(data.CorrectGuesses, msg.PlayerID)
	state.Scores[msg.PlayerID] += guessScore(state)
	state.Scores[data.CurrentDrawer] += DrawerBonus
	out = append(out, internal.ServerMessage{
		Type:   internal.TypeScoreUpdate,
		RoomID: state.RoomID,
		Data:   state.Scores,
	})
	log.Printf("[handleGuess] player %s guessed the word in room %s", msg.PlayerID, state.RoomID)

	if len(data.CorrectGuesses) >= len(state.Players)-1 {
		out = append(out, e.finishRound(state)...)
	}
	return state, out, nil
}

func (e *Engine) handleNextRound(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	data := roundData(state)
	if msg.PlayerID != data.CurrentDrawer && msg.PlayerID != state.HostID() {
		return state, nil, &internal.AuthorizationError{Reason: "only the drawer or host may advance the round"}
	}
	if state.Phase != internal.PhasePlaying && state.Phase != internal.PhaseResults {
		return state, nil, &internal.ValidationError{Reason: "no round in progress"}
	}
	e.batch.Flush()

	if state.RoundNumber >= state.Settings.MaxRounds {
		return state, e.gameOver(state), nil
	}

	next := 0
	if i := state.FindPlayer(data.CurrentDrawer); i >= 0 {
		next = (i + 1) % len(state.Players)
	}
	state.RoundNumber++
	state.Phase = internal.PhasePlaying
	state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
	state.GameData = &RoundData{
		CurrentDrawer: state.Players[next].ID,
		CurrentWord:   wordFor(state.RoomID, state.RoundNumber),
	}
	return state, []internal.ServerMessage{{
		Type:   internal.TypeGameState,
		RoomID: state.RoomID,
		Data:   state,
	}}, nil
}

func (e *Engine) handleTick(state *internal.GameState) (*internal.GameState, []internal.ServerMessage, error) {
	if state.Phase != internal.PhasePlaying {
		return state, nil, nil
	}
	state.TimeRemaining -= 1000
	if state.TimeRemaining > 0 {
		return state, []internal.ServerMessage{{
			Type:   internal.TypeTimerUpdate,
			RoomID: state.RoomID,
			Data:   map[string]int64{"timeRemaining": state.TimeRemaining},
		}}, nil
	}
	state.TimeRemaining = 0
	return state, e.finishRound(state), nil
}

// finishRound moves the room to the results phase and reveals the word.
func (e *Engine) finishRound(state *internal.GameState) []internal.ServerMessage {
	data := roundData(state)
	state.Phase = internal.PhaseResults
	e.batch.Flush()
	return []internal.ServerMessage{{
		Type:   internal.TypeRoundEnd,
		RoomID: state.RoomID,
		Data: map[string]any{
			"round":       state.RoundNumber,
			"word":        data.CurrentWord,
			"scores":      state.Scores,
			"leaderboard": Leaderboard(state),
		},
	}}
}

func (e *Engine) gameOver(state *internal.GameState) []internal.ServerMessage {
	state.Phase = internal.PhaseFinished
	e.batch.Stop()
	return []internal.ServerMessage{{
		Type:   internal.TypeGameEnded,
		RoomID: state.RoomID,
		Data: map[string]any{
			"leaderboard": Leaderboard(state),
			"scores":      state.Scores,
		},
	}}
}

// LeaderboardEntry is one row of the final standings.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// Leaderboard returns the players ordered by score descending, ties broken
// by seat order.
func Leaderboard(state *internal.GameState) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(state.Players))
	for _, p := range state.Players {
		entries = append(entries, LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    state.Scores[p.ID],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func (e *Engine) ValidateGameAction(state *internal.GameState, playerID, action string) bool {
	data := roundData(state)
	switch action {
	case internal.TypeDraw:
		return state.Phase == internal.PhasePlaying && playerID == data.CurrentDrawer
	case internal.TypeGuess:
		return state.Phase == internal.PhasePlaying &&
			playerID != data.CurrentDrawer &&
			!data.guessedAlready(playerID)
	case internal.TypeNextRound:
		return playerID == data.CurrentDrawer || playerID == state.HostID()
	default:
		return false
	}
}

func (e *Engine) AddPlayer(state *internal.GameState, player internal.PlayerState) *internal.GameState {
	if state.FindPlayer(player.ID) >= 0 {
		return state
	}
	state.Players = append(state.Players, player)
	if _, ok := state.Scores[player.ID]; !ok {
		state.Scores[player.ID] = 0
	}
	return state
}

func (e *Engine) RemovePlayer(state *internal.GameState, playerID string) (*internal.GameState, []internal.ServerMessage) {
	idx := state.FindPlayer(playerID)
	if idx < 0 {
		return state, nil
	}
	data := roundData(state)
	wasDrawer := data.CurrentDrawer == playerID

	state.Players = append(state.Players[:idx], state.Players[idx+1:]...)
	data.CorrectGuesses = removeID(data.CorrectGuesses, playerID)

	if wasDrawer && len(state.Players) > 0 {
		next := idx % len(state.Players)
		switch state.Phase {
		case internal.PhasePlaying:
			// Hand the brush to the next seat; the word changes with the
			// drawer so nobody inherits a word they may have seen.
			state.GameData = &RoundData{
				CurrentDrawer: state.Players[next].ID,
				CurrentWord:   wordFor(state.RoomID, state.RoundNumber*31+next),
			}
			state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
			log.Printf("[RemovePlayer] drawer left room %s, brush passed to %s", state.RoomID, state.Players[next].ID)
		case internal.PhaseResults:
			// The round is over; just keep the seat valid so the next-round
			// rotation starts from a player still in the room.
			data.CurrentDrawer = state.Players[next].ID
		}
	}
	return state, nil
}

func (e *Engine) CalculateScore(state *internal.GameState, playerID, action string) int {
	if action != internal.TypeGuess {
		return 0
	}
	return guessScore(state)
}

func (e *Engine) EndGame(state *internal.GameState) *internal.GameState {
	state.Phase = internal.PhaseFinished
	e.batch.Stop()
	return state
}

// RedactFor masks the current word for everyone except the drawer while a
// round is live.
func (e *Engine) RedactFor(state *internal.GameState, playerID string) *internal.GameState {
	data := roundData(state)
	if state.Phase != internal.PhasePlaying || playerID == data.CurrentDrawer {
		return state
	}
	redacted := *state
	masked := *data
	masked.CurrentWord = utils.MaskWord(data.CurrentWord)
	redacted.GameData = &masked
	return &redacted
}

// guessScore decays linearly from 100 to 0 over the round, computed from the
// authoritative clock in state rather than wall time.
func guessScore(state *internal.GameState) int {
	total := int64(state.Settings.RoundTimeSeconds) * 1000
	if total <= 0 {
		return 0
	}
	elapsed := total - state.TimeRemaining
	if elapsed < 0 {
		elapsed = 0
	}
	score := 100 - int(elapsed*100/total)
	if score < 0 {
		score = 0
	}
	return score
}

// roundData returns the drawing payload, normalizing a nil GameData so every
// call site can assume a usable struct.
func roundData(state *internal.GameState) *RoundData {
	if data, ok := state.GameData.(*RoundData); ok && data != nil {
		return data
	}
	data := &RoundData{}
	state.GameData = data
	return data
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
