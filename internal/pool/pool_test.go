package pool

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlor-backend/internal"
)

type fakeSocket struct {
	mu      sync.Mutex
	frames  [][]byte
	failing bool
	closed  bool
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("broken pipe")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testMsg(roomID string) internal.ServerMessage {
	return internal.ServerMessage{Type: internal.TypeChatMessage, RoomID: roomID, Data: "hi"}
}

func TestAddReplacesPriorSocket(t *testing.T) {
	p := New()
	old := &fakeSocket{}
	p.Add("p1", "r1", old)

	fresh := &fakeSocket{}
	p.Add("p1", "r1", fresh)

	require.True(t, old.isClosed())
	require.Equal(t, 1, p.RoomSize("r1"))

	require.True(t, p.Send("p1", testMsg("r1")))
	require.Zero(t, old.frameCount())
	require.Equal(t, 1, fresh.frameCount())
}

func TestRemoveReturnsVacatedRoomAndPrunes(t *testing.T) {
	p := New()
	sock := &fakeSocket{}
	p.Add("p1", "r1", sock)

	roomID, ok := p.Remove("p1")
	require.True(t, ok)
	require.Equal(t, "r1", roomID)
	require.True(t, sock.isClosed())
	require.Zero(t, p.RoomSize("r1"))
	require.Empty(t, p.RoomMembers("r1"))

	_, ok = p.Remove("p1")
	require.False(t, ok)
}

func TestBroadcastExcludesSender(t *testing.T) {
	p := New()
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}
	s3 := &fakeSocket{}
	p.Add("p1", "r1", s1)
	p.Add("p2", "r1", s2)
	p.Add("p3", "other", s3)

	p.BroadcastToRoom("r1", testMsg("r1"), "p1")

	require.Zero(t, s1.frameCount())
	require.Equal(t, 1, s2.frameCount())
	require.Zero(t, s3.frameCount(), "other rooms never see the message")
}

func TestBroadcastEvictsFailedWriter(t *testing.T) {
	p := New()
	healthy := &fakeSocket{}
	dead := &fakeSocket{failing: true}
	p.Add("p1", "r1", healthy)
	p.Add("p2", "r1", dead)

	p.BroadcastToRoom("r1", testMsg("r1"), "")

	// The dead socket is gone, the healthy one still got the frame.
	require.Equal(t, 1, healthy.frameCount())
	require.Equal(t, 1, p.RoomSize("r1"))
	_, ok := p.Get("p2")
	require.False(t, ok)
}

func TestSendToUnknownPlayer(t *testing.T) {
	p := New()
	require.False(t, p.Send("ghost", testMsg("r1")))
}

func TestSendEvictsOnFailure(t *testing.T) {
	p := New()
	dead := &fakeSocket{failing: true}
	p.Add("p1", "r1", dead)

	require.False(t, p.Send("p1", testMsg("r1")))
	_, ok := p.Get("p1")
	require.False(t, ok)
	require.True(t, dead.isClosed())
}

func TestBroadcastPayloadIsEnvelope(t *testing.T) {
	p := New()
	sock := &fakeSocket{}
	p.Add("p1", "r1", sock)

	p.BroadcastToRoom("r1", testMsg("r1"), "")
	require.Equal(t, 1, sock.frameCount())

	var msg internal.ServerMessage
	require.NoError(t, json.Unmarshal(sock.frames[0], &msg))
	require.Equal(t, internal.TypeChatMessage, msg.Type)
	require.Equal(t, "r1", msg.RoomID)
}
