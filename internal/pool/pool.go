// Package pool owns every live websocket connection and the room membership
// index. Broadcast and send never propagate write failures to callers; a
// failed socket is evicted and the failure logged.
package pool

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/parlorgames/parlor-backend/internal"
)

// Socket is the subset of *websocket.Conn the pool needs. Tests substitute
// in-memory fakes.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one player's registered socket. Exclusively owned by the
// pool; created on join, destroyed on disconnect or leave. The write mutex
// serializes frames because gorilla connections allow one concurrent writer.
type Connection struct {
	PlayerID     string
	RoomID       string
	LastActivity time.Time

	sock    Socket
	writeMu sync.Mutex
}

func (c *Connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// WriteJSON marshals and sends one message on this connection. Used by the
// router for replies to senders that may not be pool members yet.
func (c *Connection) WriteJSON(msg internal.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(data)
}

type Pool struct {
	mu    sync.RWMutex
	conns map[string]*Connection         // playerID -> connection
	rooms map[string]map[string]struct{} // roomID -> set of playerIDs
}

func New() *Pool {
	return &Pool{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Add registers a player's socket and room membership. Re-adding the same
// player replaces the prior socket entry; the old socket is closed.
func (p *Pool) Add(playerID, roomID string, sock Socket) *Connection {
	conn := &Connection{
		PlayerID:     playerID,
		RoomID:       roomID,
		LastActivity: time.Now(),
		sock:         sock,
	}

	p.mu.Lock()
	if prior, ok := p.conns[playerID]; ok {
		prior.sock.Close()
		if members, ok := p.rooms[prior.RoomID]; ok {
			delete(members, playerID)
			if len(members) == 0 {
				delete(p.rooms, prior.RoomID)
			}
		}
	}
	p.conns[playerID] = conn
	if p.rooms[roomID] == nil {
		p.rooms[roomID] = make(map[string]struct{})
	}
	p.rooms[roomID][playerID] = struct{}{}
	p.mu.Unlock()

	log.Printf("[Pool.Add] player=%s room=%s registered", playerID, roomID)
	return conn
}

// Remove drops a player's connection and returns the room it vacated. Empty
// rooms are pruned from the membership index.
func (p *Pool) Remove(playerID string) (string, bool) {
	p.mu.Lock()
	conn, ok := p.conns[playerID]
	if !ok {
		p.mu.Unlock()
		return "", false
	}
	delete(p.conns, playerID)
	roomID := conn.RoomID
	if members, ok := p.rooms[roomID]; ok {
		delete(members, playerID)
		if len(members) == 0 {
			delete(p.rooms, roomID)
		}
	}
	p.mu.Unlock()

	conn.sock.Close()
	log.Printf("[Pool.Remove] player=%s vacated room=%s", playerID, roomID)
	return roomID, true
}

// Get returns the registered connection for a player.
func (p *Pool) Get(playerID string) (*Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.conns[playerID]
	return conn, ok
}

// RoomMembers returns the playerIDs currently registered in a room.
func (p *Pool) RoomMembers(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	members := make([]string, 0, len(p.rooms[roomID]))
	for id := range p.rooms[roomID] {
		members = append(members, id)
	}
	return members
}

// RoomSize returns the number of registered connections in a room.
func (p *Pool) RoomSize(roomID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms[roomID])
}

// BroadcastToRoom serializes msg once and sends it to every member of the
// room except excludePlayerID (pass "" to send to all). Members whose socket
// write fails are evicted.
func (p *Pool) BroadcastToRoom(roomID string, msg internal.ServerMessage, excludePlayerID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Pool.Broadcast] room=%s marshal failed: %v", roomID, err)
		return
	}

	// Snapshot under lock, write outside it.
	p.mu.RLock()
	targets := make([]*Connection, 0, len(p.rooms[roomID]))
	for id := range p.rooms[roomID] {
		if id == excludePlayerID {
			continue
		}
		if conn, ok := p.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	p.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.write(data); err != nil {
			log.Printf("[Pool.Broadcast] room=%s player=%s write failed, evicting: %v",
				roomID, conn.PlayerID, err)
			p.Remove(conn.PlayerID)
		}
	}
}

// Send delivers msg to a single player. A send failure evicts the connection
// and returns false; it never panics or propagates the error.
func (p *Pool) Send(playerID string, msg internal.ServerMessage) bool {
	p.mu.RLock()
	conn, ok := p.conns[playerID]
	p.mu.RUnlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Pool.Send] player=%s marshal failed: %v", playerID, err)
		return false
	}
	if err := conn.write(data); err != nil {
		log.Printf("[Pool.Send] player=%s write failed, evicting: %v", playerID, err)
		p.Remove(playerID)
		return false
	}

	p.mu.Lock()
	conn.LastActivity = time.Now()
	p.mu.Unlock()
	return true
}
