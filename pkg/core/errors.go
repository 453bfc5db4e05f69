package core

import (
	"fmt"
)

// Error represents a classified failure inside the chat pipeline.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Wrapped   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// ErrorType categorizes errors by how the session recovers from them.
type ErrorType string

const (
	// ErrAuthentication is terminal: the connection is rejected and not retried.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrGeneration means the language-model call failed; the session substitutes
	// a fixed fallback reply and the conversation continues.
	ErrGeneration ErrorType = "generation_error"
	// ErrSpeech means a recognition or synthesis call failed; the attempt is
	// dropped and the user must re-trigger it.
	ErrSpeech ErrorType = "speech_error"
	// ErrPersistence is swallowed by the background coordinator and never
	// surfaced to the caller.
	ErrPersistence ErrorType = "persistence_error"
	// ErrProtocol marks an unrecognized inbound event; it is ignored.
	ErrProtocol ErrorType = "protocol_error"
)

// NewAuthenticationError creates a terminal authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewGenerationError wraps a failed language-model call.
func NewGenerationError(underlying error) *Error {
	return &Error{Type: ErrGeneration, Message: fmt.Sprintf("language model: %v", underlying), Wrapped: underlying}
}

// NewSpeechError wraps a failed recognition or synthesis call.
func NewSpeechError(stage string, underlying error) *Error {
	return &Error{Type: ErrSpeech, Message: fmt.Sprintf("%s: %v", stage, underlying), Code: stage, Wrapped: underlying}
}

// NewPersistenceError wraps a failed storage call.
func NewPersistenceError(op string, underlying error) *Error {
	return &Error{Type: ErrPersistence, Message: fmt.Sprintf("%s: %v", op, underlying), Code: op, Wrapped: underlying}
}

// NewProtocolError marks an inbound event the session does not recognize.
func NewProtocolError(tag string) *Error {
	return &Error{Type: ErrProtocol, Message: fmt.Sprintf("unrecognized event type %q", tag), Param: "type"}
}

// IsTerminal reports whether the error must end the connection.
func (e *Error) IsTerminal() bool {
	return e.Type == ErrAuthentication
}
