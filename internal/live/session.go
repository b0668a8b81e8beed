// Package live abstracts the remote bidirectional analysis session.
//
// The pipeline only ever talks to the Client and Session interfaces, so tests
// run against in-memory doubles and the production wiring swaps in the Gemini
// Live implementation from gemini.go. Normal remote closure is reported as the
// tagged ErrSessionClosed sentinel, never as a string to be matched.
package live

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by Session.Receive when the remote end closed
// the connection normally. It is the pipeline's end-of-stream signal, not a
// failure.
var ErrSessionClosed = errors.New("live session closed")

// Input is one unit of media input for the session.
// MIMEType identifies the payload ("image/jpeg", "audio/pcm;rate=16000").
// A zero Input sent with endOfTurn=true closes the input turn without payload.
type Input struct {
	MIMEType string
	Data     []byte
}

// IsZero reports whether the input carries no payload.
func (in Input) IsZero() bool { return in.MIMEType == "" && len(in.Data) == 0 }

// Event is one streamed response event from the session.
type Event struct {
	// Text is the response fragment, empty for non-text events.
	Text string

	// TurnComplete marks the end of one logical response turn.
	TurnComplete bool
}

// SessionConfig carries the per-session settings the remote service needs.
type SessionConfig struct {
	// SystemInstruction frames the model's task for the whole session.
	SystemInstruction string
}

// Session is an open bidirectional analysis session.
//
// Send and Receive may be used concurrently by one writer and one reader;
// neither is safe for concurrent use with itself. Close is idempotent.
type Session interface {
	Send(ctx context.Context, in Input, endOfTurn bool) error
	Receive() (Event, error)
	Close() error
}

// Client connects analysis sessions. Passed into the pipeline explicitly so
// callers control configuration and tests substitute doubles.
type Client interface {
	Connect(ctx context.Context, model string, cfg *SessionConfig) (Session, error)
}

// ConnectError indicates the session handshake failed. The caller may retry
// with backoff.
type ConnectError struct {
	Model string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("live connect %s: %v", e.Model, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError indicates a mid-stream transport failure while forwarding input.
// The pipeline fails fast on it.
type SendError struct {
	MIMEType string
	Err      error
}

func (e *SendError) Error() string {
	if e.MIMEType != "" {
		return fmt.Sprintf("live send %s: %v", e.MIMEType, e.Err)
	}
	return fmt.Sprintf("live send: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
