// Package router parses, validates, rate-limits and dispatches every inbound
// client frame. It is the error boundary: a single bad message may be
// rejected, but it must never take down the connection or the process.
package router

import (
	"encoding/json"
	"errors"
	"log"
	"runtime/debug"

	"github.com/gorilla/websocket"
	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/pool"
)

// Handler processes one validated client message. The socket is only needed
// by handlers that register connections (join-room); everyone else addresses
// players through the pool.
type Handler func(sock pool.Socket, msg *internal.ClientMessage) error

type Router struct {
	validator Validator
	limiter   *RateLimiter
	conns     *pool.Pool
	handlers  map[string]Handler
}

func New(limiter *RateLimiter, conns *pool.Pool) *Router {
	return &Router{
		limiter:  limiter,
		conns:    conns,
		handlers: make(map[string]Handler),
	}
}

// Register installs the handler for a message type. Last registration wins.
func (r *Router) Register(msgType string, h Handler) {
	r.handlers[msgType] = h
}

// Limiter exposes the rate limiter so connection teardown can release a
// player's budgets.
func (r *Router) Limiter() *RateLimiter { return r.limiter }

// Route processes one raw frame from a connection. All handler errors and
// panics are absorbed here.
func (r *Router) Route(sock pool.Socket, raw []byte) {
	var msg internal.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[Router.Route] unparseable frame: %v", err)
		r.reply(sock, "", internal.ErrorMessage("", "validation", "invalid message format"))
		return
	}

	if err := r.validator.ValidateEnvelope(&msg); err != nil {
		log.Printf("[Router.Route] invalid envelope: %v", err)
		r.reply(sock, msg.PlayerID, internal.ErrorMessage(msg.RoomID, "validation", "invalid message format"))
		return
	}

	if err := r.limiter.CheckRateLimit(msg.PlayerID, msg.Type); err != nil {
		log.Printf("[Router.Route] player=%s type=%s: %v", msg.PlayerID, msg.Type, err)
		r.reply(sock, msg.PlayerID, internal.ErrorMessage(msg.RoomID, "rate-limit", "rate limit exceeded"))
		return
	}

	handler, ok := r.handlers[msg.Type]
	if !ok {
		log.Printf("[Router.Route] player=%s unknown type %q", msg.PlayerID, msg.Type)
		r.reply(sock, msg.PlayerID, internal.ErrorMessage(msg.RoomID, "validation", "unknown message type"))
		return
	}

	r.dispatch(handler, sock, &msg)
}

func (r *Router) dispatch(handler Handler, sock pool.Socket, msg *internal.ClientMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Router.dispatch] panic handling type=%s player=%s: %v\n%s",
				msg.Type, msg.PlayerID, rec, debug.Stack())
			r.reply(sock, msg.PlayerID, internal.ErrorMessage(msg.RoomID, "internal", "internal server error"))
		}
	}()

	if err := handler(sock, msg); err != nil {
		r.reply(sock, msg.PlayerID, r.errorReply(msg.RoomID, msg.Type, msg.PlayerID, err))
	}
}

func (r *Router) errorReply(roomID, msgType, playerID string, err error) internal.ServerMessage {
	var (
		vErr  *internal.ValidationError
		aErr  *internal.AuthorizationError
		cErr  *internal.CapacityError
		rlErr *internal.RateLimitError
	)
	switch {
	case errors.As(err, &vErr):
		return internal.ErrorMessage(roomID, "validation", vErr.Reason)
	case errors.As(err, &aErr):
		return internal.ErrorMessage(roomID, "authorization", aErr.Reason)
	case errors.As(err, &cErr):
		return internal.ErrorMessage(roomID, "capacity", cErr.Reason)
	case errors.As(err, &rlErr):
		return internal.ErrorMessage(roomID, "rate-limit", "rate limit exceeded")
	default:
		log.Printf("[Router.dispatch] handler error type=%s player=%s: %v", msgType, playerID, err)
		return internal.ErrorMessage(roomID, "internal", "internal server error")
	}
}

// reply prefers the pool's serialized writer when the sender is registered;
// before join-room there is no pool entry and no concurrent writer, so a
// direct socket write is safe.
func (r *Router) reply(sock pool.Socket, playerID string, msg internal.ServerMessage) {
	if playerID != "" {
		if r.conns.Send(playerID, msg) {
			return
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Router.reply] direct write failed: %v", err)
	}
}
