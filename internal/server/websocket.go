package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor-backend/internal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the connection and runs the read loop. One socket
// carries one room membership; the player identifies itself through the
// playerId field of its envelopes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HandleWebSocket] upgrade failed for room %s: %v", roomID, err)
		return
	}
	log.Printf("[HandleWebSocket] new connection for room %s", roomID)

	go s.readLoop(conn, roomID)
}

// readLoop feeds inbound frames to the router until the socket dies, then
// runs disconnect cleanup for whoever spoke on it.
func (s *Server) readLoop(conn *websocket.Conn, roomID string) {
	var playerID string
	defer func() {
		conn.Close()
		if playerID != "" {
			s.service.HandleDisconnect(playerID)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[readLoop] room %s: %v", roomID, err)
			}
			return
		}

		// Remember who owns this socket for disconnect cleanup.
		var envelope internal.ClientMessage
		if json.Unmarshal(raw, &envelope) == nil && envelope.PlayerID != "" {
			playerID = envelope.PlayerID
		}

		s.router.Route(conn, raw)
	}
}
