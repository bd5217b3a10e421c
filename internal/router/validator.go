package router

import (
	"github.com/parlorgames/parlor-backend/internal"
)

const (
	maxTypeLen     = 32
	maxIDLen       = 64
	maxPayloadSize = 64 * 1024
)

// Validator performs structural checks on the inbound envelope before any
// handler sees it. Semantic checks (turn ownership, phase, capacity) stay
// with the handlers and engines.
type Validator struct{}

// ValidateEnvelope reports the first structural problem with a parsed client
// message, or nil if it is acceptable.
func (v *Validator) ValidateEnvelope(msg *internal.ClientMessage) error {
	switch {
	case msg.Type == "" || len(msg.Type) > maxTypeLen:
		return &internal.ValidationError{Reason: "missing or oversized message type"}
	case msg.RoomID == "" || len(msg.RoomID) > maxIDLen:
		return &internal.ValidationError{Reason: "missing or oversized roomId"}
	case msg.PlayerID == "" || len(msg.PlayerID) > maxIDLen:
		return &internal.ValidationError{Reason: "missing or oversized playerId"}
	case len(msg.Data) > maxPayloadSize:
		return &internal.ValidationError{Reason: "payload too large"}
	}
	return nil
}

// ValidatePlayerName checks a join-room display name.
func (v *Validator) ValidatePlayerName(name string) error {
	if name == "" {
		return &internal.ValidationError{Reason: "player name is required"}
	}
	if len(name) > 24 {
		return &internal.ValidationError{Reason: "player name too long"}
	}
	return nil
}
