package handlers

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/engine"
	"github.com/parlorgames/parlor-backend/internal/engine/drawing"
	"github.com/parlorgames/parlor-backend/internal/engine/poker"
	"github.com/parlorgames/parlor-backend/internal/pool"
	"github.com/parlorgames/parlor-backend/internal/router"
	"github.com/parlorgames/parlor-backend/internal/store"
	"github.com/parlorgames/parlor-backend/internal/timer"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeSocket) Close() error { return nil }

func (f *fakeSocket) messages(t *testing.T) []internal.ServerMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]internal.ServerMessage, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg internal.ServerMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func (f *fakeSocket) typed(t *testing.T, msgType string) []internal.ServerMessage {
	t.Helper()
	var out []internal.ServerMessage
	for _, msg := range f.messages(t) {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	mem := store.NewMemory()
	registry := engine.NewRegistry()
	registry.Register(internal.GameTypeDrawing, drawing.NewFactory(), drawing.Metadata())
	registry.Register(internal.GameTypePoker, poker.NewFactory(), poker.Metadata())

	timers := timer.NewService()
	conns := pool.New()
	limiter := router.NewRateLimiter()
	return New(conns, timers, registry, mem, mem, limiter)
}

func join(t *testing.T, s *Service, sock pool.Socket, roomID, playerID, name string) error {
	t.Helper()
	data, err := json.Marshal(joinPayload{PlayerName: name})
	require.NoError(t, err)
	return s.HandleJoinRoom(sock, &internal.ClientMessage{
		Type: internal.TypeJoinRoom, RoomID: roomID, PlayerID: playerID, Data: data,
	})
}

func msg(t *testing.T, msgType, roomID, playerID string, payload any) *internal.ClientMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &internal.ClientMessage{Type: msgType, RoomID: roomID, PlayerID: playerID, Data: data}
}

func TestJoinCreatesRoomAndSendsSnapshot(t *testing.T) {
	s := newTestService(t)
	sock := &fakeSocket{}

	require.NoError(t, join(t, s, sock, "r1", "p1", "Alice"))

	sess := s.session("r1")
	require.NotNil(t, sess)
	require.Equal(t, internal.PhaseWaiting, sess.state.Phase)
	require.Equal(t, "p1", sess.state.HostID())

	states := sock.typed(t, internal.TypeGameState)
	require.Len(t, states, 1)
}

func TestJoinRejectsBadName(t *testing.T) {
	s := newTestService(t)

	err := join(t, s, &fakeSocket{}, "r1", "p1", "")
	var valErr *internal.ValidationError
	require.ErrorAs(t, err, &valErr)

	err = join(t, s, &fakeSocket{}, "r1", "p1", "this display name is way past the cap")
	require.ErrorAs(t, err, &valErr)
}

func TestSecondJoinerIsAnnounced(t *testing.T) {
	s := newTestService(t)
	first := &fakeSocket{}
	second := &fakeSocket{}

	require.NoError(t, join(t, s, first, "r1", "p1", "Alice"))
	require.NoError(t, join(t, s, second, "r1", "p2", "Bob"))

	joined := first.typed(t, internal.TypePlayerJoined)
	require.Len(t, joined, 1)
	require.Empty(t, second.typed(t, internal.TypePlayerJoined), "the joiner only gets the snapshot")
	require.Len(t, second.typed(t, internal.TypeGameState), 1)

	sess := s.session("r1")
	require.Len(t, sess.state.Players, 2)
	require.Equal(t, "p1", sess.state.HostID(), "host does not change on join")
}

func TestJoinRejectsWhenRoomFull(t *testing.T) {
	s := newTestService(t)
	for i := 0; i < internal.MaxPlayersPerRoom; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, join(t, s, &fakeSocket{}, "r1", id, "Player"+id))
	}

	err := join(t, s, &fakeSocket{}, "r1", "late", "Latecomer")
	var capErr *internal.CapacityError
	require.ErrorAs(t, err, &capErr)
}

func TestStartGameRequiresHostAndQuorum(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p1", "Alice"))

	// Alone: not enough players.
	err := s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{}))
	var valErr *internal.ValidationError
	require.ErrorAs(t, err, &valErr)

	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p2", "Bob"))

	// Non-host cannot start.
	err = s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p2", struct{}{}))
	var authErr *internal.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{})))
	sess := s.session("r1")
	require.Equal(t, internal.PhasePlaying, sess.state.Phase)
	require.True(t, s.timers.Active("r1"))

	// Starting twice is rejected.
	err = s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{}))
	require.ErrorAs(t, err, &valErr)

	s.timers.ClearRoundTimer("r1")
}

func TestGuessFlowThroughService(t *testing.T) {
	s := newTestService(t)
	hostSock := &fakeSocket{}
	guesserSock := &fakeSocket{}
	require.NoError(t, join(t, s, hostSock, "r1", "p1", "Alice"))
	require.NoError(t, join(t, s, guesserSock, "r1", "p2", "Bob"))
	require.NoError(t, s.HandleStartGame(hostSock, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{})))
	defer s.timers.ClearRoundTimer("r1")

	sess := s.session("r1")
	word := sess.state.GameData.(*drawing.RoundData).CurrentWord

	err := s.HandleEngineMessage(guesserSock, msg(t, internal.TypeGuess, "r1", "p2",
		map[string]string{"text": word}))
	require.NoError(t, err)
	require.Greater(t, sess.state.Scores["p2"], 0)

	chats := hostSock.typed(t, internal.TypeChatMessage)
	require.NotEmpty(t, chats)
}

func TestHostMigrationOnLeave(t *testing.T) {
	s := newTestService(t)
	hostSock := &fakeSocket{}
	nextSock := &fakeSocket{}
	require.NoError(t, join(t, s, hostSock, "r1", "p1", "Alice"))
	require.NoError(t, join(t, s, nextSock, "r1", "p2", "Bob"))
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p3", "Cara"))

	require.NoError(t, s.HandleLeaveRoom(hostSock, msg(t, internal.TypeLeaveRoom, "r1", "p1", struct{}{})))

	sess := s.session("r1")
	require.Equal(t, "p2", sess.state.HostID(), "earliest remaining joiner becomes host")
	require.Equal(t, -1, sess.state.FindPlayer("p1"))

	changed := nextSock.typed(t, internal.TypeHostChanged)
	require.Len(t, changed, 1)
}

func TestEmptyRoomIsTornDown(t *testing.T) {
	s := newTestService(t)
	sock := &fakeSocket{}
	require.NoError(t, join(t, s, sock, "r1", "p1", "Alice"))
	require.NotNil(t, s.session("r1"))

	s.HandleDisconnect("p1")

	require.Nil(t, s.session("r1"))
	require.False(t, s.timers.Active("r1"))
	require.Empty(t, s.RoomsAvailable())
}

func TestUpdateSettingsGuards(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p1", "Alice"))
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p2", "Bob"))

	var valErr *internal.ValidationError
	var authErr *internal.AuthorizationError

	// Out of range values are rejected outright.
	err := s.HandleUpdateSettings(&fakeSocket{}, msg(t, internal.TypeUpdateSettings, "r1", "p1",
		internal.GameSettings{MaxRounds: 11, RoundTimeSeconds: 75}))
	require.ErrorAs(t, err, &valErr)

	err = s.HandleUpdateSettings(&fakeSocket{}, msg(t, internal.TypeUpdateSettings, "r1", "p1",
		internal.GameSettings{MaxRounds: 5, RoundTimeSeconds: 45}))
	require.ErrorAs(t, err, &valErr)

	// Only the host may change settings.
	err = s.HandleUpdateSettings(&fakeSocket{}, msg(t, internal.TypeUpdateSettings, "r1", "p2",
		internal.GameSettings{MaxRounds: 5, RoundTimeSeconds: 80}))
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, s.HandleUpdateSettings(&fakeSocket{}, msg(t, internal.TypeUpdateSettings, "r1", "p1",
		internal.GameSettings{MaxRounds: 5, RoundTimeSeconds: 80})))
	sess := s.session("r1")
	require.Equal(t, 5, sess.state.Settings.MaxRounds)
	require.Equal(t, 80, sess.state.Settings.RoundTimeSeconds)

	// Locked once the game starts.
	require.NoError(t, s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{})))
	defer s.timers.ClearRoundTimer("r1")
	err = s.HandleUpdateSettings(&fakeSocket{}, msg(t, internal.TypeUpdateSettings, "r1", "p1",
		internal.GameSettings{MaxRounds: 6, RoundTimeSeconds: 80}))
	require.ErrorAs(t, err, &valErr)
}

func TestPingGetsPong(t *testing.T) {
	s := newTestService(t)
	sock := &fakeSocket{}
	require.NoError(t, join(t, s, sock, "r1", "p1", "Alice"))

	require.NoError(t, s.HandlePing(sock, msg(t, internal.TypePing, "r1", "p1", struct{}{})))
	require.Len(t, sock.typed(t, internal.TypePong), 1)
}

func TestEndGameClearsTimerAndFinishes(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p1", "Alice"))
	require.NoError(t, join(t, s, &fakeSocket{}, "r1", "p2", "Bob"))
	require.NoError(t, s.HandleStartGame(&fakeSocket{}, msg(t, internal.TypeStartGame, "r1", "p1", struct{}{})))

	require.NoError(t, s.HandleEndGame(&fakeSocket{}, msg(t, internal.TypeEndGame, "r1", "p1", struct{}{})))

	sess := s.session("r1")
	require.Equal(t, internal.PhaseFinished, sess.state.Phase)
	require.False(t, s.timers.Active("r1"))
}

func TestPokerRoomThroughService(t *testing.T) {
	s := newTestService(t)
	hostSock := &fakeSocket{}
	data, err := json.Marshal(joinPayload{PlayerName: "Alice", GameType: internal.GameTypePoker})
	require.NoError(t, err)
	require.NoError(t, s.HandleJoinRoom(hostSock, &internal.ClientMessage{
		Type: internal.TypeJoinRoom, RoomID: "t1", PlayerID: "p1", Data: data,
	}))
	require.NoError(t, join(t, s, &fakeSocket{}, "t1", "p2", "Bob"))

	require.NoError(t, s.HandleStartGame(hostSock, msg(t, internal.TypeStartGame, "t1", "p1", struct{}{})))
	defer s.timers.ClearRoundTimer("t1")

	sess := s.session("t1")
	require.Equal(t, internal.GameTypePoker, sess.state.GameType)
	hand := sess.state.GameData.(*poker.HandData)
	require.Equal(t, 30, hand.Pot)

	// Snapshots hide the opponent's hole cards.
	states := hostSock.typed(t, internal.TypeGameState)
	require.NotEmpty(t, states)
}

func TestLeaveUnknownRoomIsHarmless(t *testing.T) {
	s := newTestService(t)
	err := s.HandleLeaveRoom(&fakeSocket{}, msg(t, internal.TypeLeaveRoom, "ghost", "p1", struct{}{}))
	require.NoError(t, err)
}
