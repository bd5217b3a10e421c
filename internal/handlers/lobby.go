package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/pool"
	"github.com/parlorgames/parlor-backend/internal/router"
	"github.com/parlorgames/parlor-backend/internal/store"
)

type joinPayload struct {
	PlayerName string            `json:"playerName"`
	GameType   internal.GameType `json:"gameType,omitempty"`
}

// drawBatchSink is implemented by engines that coalesce draw commands.
type drawBatchSink interface {
	SetBatchSink(func(commands []internal.DrawingCommand))
}

// HandleJoinRoom registers the connection, creates the room and its engine
// session on first join, and sends the joiner a full snapshot.
func (s *Service) HandleJoinRoom(sock pool.Socket, msg *internal.ClientMessage) error {
	var payload joinPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return &internal.ValidationError{Reason: "malformed join payload"}
	}
	var v router.Validator
	if err := v.ValidatePlayerName(payload.PlayerName); err != nil {
		return err
	}
	gameType := payload.GameType
	if gameType == "" {
		gameType = internal.GameTypeDrawing
	}

	var handlerErr error
	s.withRoom(msg.RoomID, func() {
		sess := s.session(msg.RoomID)
		if sess != nil && len(sess.state.Players) >= internal.MaxPlayersPerRoom &&
			sess.state.FindPlayer(msg.PlayerID) < 0 {
			handlerErr = &internal.CapacityError{Reason: "room is full"}
			return
		}

		player := internal.PlayerState{
			ID:           msg.PlayerID,
			Name:         payload.PlayerName,
			IsHost:       sess == nil,
			IsConnected:  true,
			LastActivity: time.Now(),
		}

		if sess == nil {
			eng, err := s.registry.NewEngine(gameType)
			if err != nil {
				handlerErr = &internal.ValidationError{Reason: err.Error()}
				return
			}
			meta, _ := s.registry.Metadata(gameType)
			sess = &gameSession{
				engine: eng,
				state:  eng.InitializeGame(msg.RoomID, []internal.PlayerState{player}, meta.DefaultSettings),
			}
			if batcher, ok := eng.(drawBatchSink); ok {
				roomID := msg.RoomID
				batcher.SetBatchSink(func(commands []internal.DrawingCommand) {
					s.conns.BroadcastToRoom(roomID, internal.ServerMessage{
						Type:   internal.TypeDrawUpdateBatch,
						RoomID: roomID,
						Data:   commands,
					}, "")
				})
			}
			s.putSession(msg.RoomID, sess)
			s.persistRoom(sess, player)
			log.Printf("[HandleJoinRoom] room %s created for game type %s by %s", msg.RoomID, gameType, msg.PlayerID)
		} else if sess.state.FindPlayer(msg.PlayerID) < 0 {
			sess.state = sess.engine.AddPlayer(sess.state, player)
			s.persistPlayer(msg.RoomID, player)
		} else {
			// Rejoin over a fresh socket; mark the seat live again.
			idx := sess.state.FindPlayer(msg.PlayerID)
			sess.state.Players[idx].IsConnected = true
			sess.state.Players[idx].LastActivity = time.Now()
		}

		s.conns.Add(msg.PlayerID, msg.RoomID, sock)

		s.conns.BroadcastToRoom(msg.RoomID, internal.ServerMessage{
			Type:   internal.TypePlayerJoined,
			RoomID: msg.RoomID,
			Data: map[string]any{
				"playerId":   msg.PlayerID,
				"playerName": payload.PlayerName,
				"players":    sess.state.Players,
			},
		}, msg.PlayerID)
		s.sendState(sess, msg.PlayerID)
		s.snapshot(sess)
	})
	return handlerErr
}

// HandleLeaveRoom removes the player on request; the websocket close path
// funnels into the same logic through HandleDisconnect.
func (s *Service) HandleLeaveRoom(sock pool.Socket, msg *internal.ClientMessage) error {
	s.removePlayer(msg.RoomID, msg.PlayerID)
	s.conns.Remove(msg.PlayerID)
	s.limiter.Forget(msg.PlayerID)
	return nil
}

// HandleDisconnect handles a dropped socket.
func (s *Service) HandleDisconnect(playerID string) {
	roomID, ok := s.conns.Remove(playerID)
	s.limiter.Forget(playerID)
	if !ok {
		return
	}
	log.Printf("[HandleDisconnect] player %s dropped from room %s", playerID, roomID)
	s.removePlayer(roomID, playerID)
}

// removePlayer takes the player out of the room, migrates the host seat if
// needed and tears the room down once it empties.
func (s *Service) removePlayer(roomID, playerID string) {
	s.withRoom(roomID, func() {
		sess := s.session(roomID)
		if sess == nil || sess.state.FindPlayer(playerID) < 0 {
			return
		}

		wasHost := sess.state.HostID() == playerID
		state, out := sess.engine.RemovePlayer(sess.state, playerID)
		sess.state = state
		s.dropPlayerRecord(roomID, playerID)

		if len(sess.state.Players) == 0 {
			s.teardownRoom(roomID, sess)
			return
		}

		// A departure can resolve the round (an uncontested pot, a folded
		// turn); relay whatever the engine reported before the roster update.
		s.deliver(sess, out)
		s.afterEngine(sess)

		s.conns.BroadcastToRoom(roomID, internal.ServerMessage{
			Type:   internal.TypePlayerLeft,
			RoomID: roomID,
			Data: map[string]any{
				"playerId": playerID,
				"players":  sess.state.Players,
			},
		}, "")

		if wasHost {
			// Host migrates to the earliest-joined remaining player.
			sess.state.Players[0].IsHost = true
			newHost := sess.state.Players[0].ID
			log.Printf("[removePlayer] room %s host migrated to %s", roomID, newHost)
			s.conns.BroadcastToRoom(roomID, internal.ServerMessage{
				Type:   internal.TypeHostChanged,
				RoomID: roomID,
				Data:   map[string]string{"hostId": newHost},
			}, "")
		}

		s.broadcastState(sess)
		s.snapshot(sess)
	})
}

// teardownRoom releases everything tied to an emptied room.
func (s *Service) teardownRoom(roomID string, sess *gameSession) {
	s.timers.ClearRoundTimer(roomID)
	sess.state = sess.engine.EndGame(sess.state)
	s.dropSession(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if s.states != nil {
		if err := s.states.DeleteState(ctx, roomID); err != nil {
			log.Printf("[teardownRoom] delete state for room %s: %v", roomID, err)
		}
	}
	if s.rooms != nil {
		if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
			log.Printf("[teardownRoom] delete room %s: %v", roomID, err)
		}
	}
	log.Printf("[teardownRoom] room %s emptied and released", roomID)
}

func (s *Service) persistRoom(sess *gameSession, host internal.PlayerState) {
	if s.rooms == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	room := store.Room{
		ID:         sess.state.RoomID,
		GameType:   sess.state.GameType,
		HostID:     host.ID,
		MaxPlayers: internal.MaxPlayersPerRoom,
		CreatedAt:  time.Now(),
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		log.Printf("[persistRoom] room %s: %v", room.ID, err)
		return
	}
	s.persistPlayer(room.ID, host)
}

func (s *Service) persistPlayer(roomID string, player internal.PlayerState) {
	if s.rooms == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	record := store.PlayerRecord{
		ID:       player.ID,
		RoomID:   roomID,
		Name:     player.Name,
		IsHost:   player.IsHost,
		JoinedAt: time.Now(),
	}
	if err := s.rooms.UpsertPlayer(ctx, record); err != nil {
		log.Printf("[persistPlayer] player %s in room %s: %v", player.ID, roomID, err)
	}
}

func (s *Service) dropPlayerRecord(roomID, playerID string) {
	if s.rooms == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.rooms.RemovePlayer(ctx, roomID, playerID); err != nil {
		log.Printf("[dropPlayerRecord] player %s in room %s: %v", playerID, roomID, err)
	}
}
