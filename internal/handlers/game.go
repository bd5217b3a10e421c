package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/pool"
)

type chatPayload struct {
	Text string `json:"text"`
}

// HandleChat broadcasts plain chat. Guesses go through the engine instead so
// the word check happens there.
func (s *Service) HandleChat(sock pool.Socket, msg *internal.ClientMessage) error {
	var payload chatPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Text == "" {
		return &internal.ValidationError{Reason: "malformed chat payload"}
	}

	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess == nil {
			handlerErr = &internal.ValidationError{Reason: "room does not exist"}
			return
		}
		idx := sess.state.FindPlayer(msg.PlayerID)
		if idx < 0 {
			handlerErr = &internal.AuthorizationError{Reason: "player is not in this room"}
			return
		}
		chat := internal.ChatMessage{
			PlayerID:   msg.PlayerID,
			PlayerName: sess.state.Players[idx].Name,
			Text:       payload.Text,
			Timestamp:  time.Now().UnixMilli(),
		}
		sess.state.ChatMessages = append(sess.state.ChatMessages, chat)
		s.conns.BroadcastToRoom(msg.RoomID, internal.ServerMessage{
			Type:   internal.TypeChatMessage,
			RoomID: msg.RoomID,
			Data:   chat,
		}, "")
	})
	return handlerErr
}

// HandleEngineMessage forwards in-game messages (guess, draw, game-action,
// next-round) to the room's engine and delivers whatever it emits.
func (s *Service) HandleEngineMessage(sock pool.Socket, msg *internal.ClientMessage) error {
	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess == nil {
			handlerErr = &internal.ValidationError{Reason: "room does not exist"}
			return
		}
		state, out, err := sess.engine.HandleClientMessage(sess.state, msg)
		if err != nil {
			handlerErr = err
			return
		}
		sess.state = state
		s.deliver(sess, out)
		s.afterEngine(sess)
		s.snapshot(sess)
	})
	return handlerErr
}

// HandleStartGame starts the game on the host's request.
func (s *Service) HandleStartGame(sock pool.Socket, msg *internal.ClientMessage) error {
	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess == nil {
			handlerErr = &internal.ValidationError{Reason: "room does not exist"}
			return
		}
		if sess.state.HostID() != msg.PlayerID {
			handlerErr = &internal.AuthorizationError{Reason: "only the host may start the game"}
			return
		}
		if sess.state.Phase != internal.PhaseWaiting {
			handlerErr = &internal.ValidationError{Reason: "game already started"}
			return
		}
		minPlayers := internal.MinPlayersToStart
		if meta, ok := s.registry.Metadata(sess.state.GameType); ok {
			minPlayers = meta.MinPlayers
		}
		if len(sess.state.Players) < minPlayers {
			handlerErr = &internal.ValidationError{Reason: "not enough players to start"}
			return
		}

		sess.state = sess.engine.StartGame(sess.state)
		log.Printf("[HandleStartGame] room %s started by host %s", msg.RoomID, msg.PlayerID)
		s.broadcastState(sess)
		s.startRoundTimer(msg.RoomID)
		s.snapshot(sess)
	})
	return handlerErr
}

// HandleEndGame ends the game on the host's request.
func (s *Service) HandleEndGame(sock pool.Socket, msg *internal.ClientMessage) error {
	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess == nil {
			handlerErr = &internal.ValidationError{Reason: "room does not exist"}
			return
		}
		if sess.state.HostID() != msg.PlayerID {
			handlerErr = &internal.AuthorizationError{Reason: "only the host may end the game"}
			return
		}
		s.timers.ClearRoundTimer(msg.RoomID)
		sess.state = sess.engine.EndGame(sess.state)
		s.conns.BroadcastToRoom(msg.RoomID, internal.ServerMessage{
			Type:   internal.TypeGameEnded,
			RoomID: msg.RoomID,
			Data:   map[string]any{"scores": sess.state.Scores},
		}, "")
		s.broadcastState(sess)
		s.snapshot(sess)
	})
	return handlerErr
}

// HandleUpdateSettings lets the host tune the room before the game starts.
func (s *Service) HandleUpdateSettings(sock pool.Socket, msg *internal.ClientMessage) error {
	var settings internal.GameSettings
	if err := json.Unmarshal(msg.Data, &settings); err != nil {
		return &internal.ValidationError{Reason: "malformed settings payload"}
	}
	if settings.MaxRounds < internal.MinRounds || settings.MaxRounds > internal.MaxRounds {
		return &internal.ValidationError{Reason: "maxRounds out of range"}
	}
	if settings.RoundTimeSeconds < internal.MinRoundTimeSeconds || settings.RoundTimeSeconds > internal.MaxRoundTimeSeconds {
		return &internal.ValidationError{Reason: "roundTimeSeconds out of range"}
	}

	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess == nil {
			handlerErr = &internal.ValidationError{Reason: "room does not exist"}
			return
		}
		if sess.state.HostID() != msg.PlayerID {
			handlerErr = &internal.AuthorizationError{Reason: "only the host may change settings"}
			return
		}
		if sess.state.Phase != internal.PhaseWaiting {
			handlerErr = &internal.ValidationError{Reason: "settings are locked once the game starts"}
			return
		}

		prev := sess.state.Settings
		prev.MaxRounds = settings.MaxRounds
		prev.RoundTimeSeconds = settings.RoundTimeSeconds
		if settings.BuyIn > 0 {
			prev.BuyIn = settings.BuyIn
		}
		if settings.SmallBlind > 0 {
			prev.SmallBlind = settings.SmallBlind
		}
		if settings.BigBlind > 0 {
			prev.BigBlind = settings.BigBlind
		}
		sess.state.Settings = prev

		s.conns.BroadcastToRoom(msg.RoomID, internal.ServerMessage{
			Type:   internal.TypeSettingsUpdated,
			RoomID: msg.RoomID,
			Data:   sess.state.Settings,
		}, "")
		s.snapshot(sess)
	})
	return handlerErr
}

// HandlePing answers the sender directly.
func (s *Service) HandlePing(sock pool.Socket, msg *internal.ClientMessage) error {
	reply := internal.ServerMessage{Type: internal.TypePong, RoomID: msg.RoomID}
	if !s.conns.Send(msg.PlayerID, reply) {
		if data, err := json.Marshal(reply); err == nil {
			_ = sock.WriteMessage(websocket.TextMessage, data)
		}
	}
	return nil
}

// startRoundTimer arms the room clock; each tick is synthesized into a
// round-tick message for the engine.
func (s *Service) startRoundTimer(roomID string) {
	s.timers.StartRoundTimer(roomID, func(roomID string) {
		s.withRoom(roomID, func() {
			sess := s.session(roomID)
			if sess == nil {
				s.timers.ClearRoundTimer(roomID)
				return
			}
			tick := &internal.ClientMessage{Type: internal.TypeRoundTick, RoomID: roomID}
			state, out, err := sess.engine.HandleClientMessage(sess.state, tick)
			if err != nil {
				log.Printf("[startRoundTimer] tick for room %s: %v", roomID, err)
				return
			}
			sess.state = state
			s.deliver(sess, out)
			s.afterEngine(sess)
		})
	})
}

// afterEngine reacts to phase changes the engine made: a finished game stops
// the clock.
func (s *Service) afterEngine(sess *gameSession) {
	if sess.state.Phase == internal.PhaseFinished {
		s.timers.ClearRoundTimer(sess.state.RoomID)
	}
}
