package internal

import "fmt"

// Error categories. Handlers return these so the router can decide what, if
// anything, is reported back to the sender; no category is ever fatal to the
// process.

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "authorization: " + e.Reason }

type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string { return "capacity: " + e.Reason }

type RateLimitError struct {
	Budget string // "draw" or "default"
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s budget)", e.Budget)
}

type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// ErrorData is the payload of every "error" server message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ErrorMessage(roomID, code, message string) ServerMessage {
	return ServerMessage{
		Type:   TypeError,
		RoomID: roomID,
		Data:   ErrorData{Code: code, Message: message},
	}
}
