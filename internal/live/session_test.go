package live

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/gorilla/websocket"
)

func TestInputIsZero(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"zero value", Input{}, true},
		{"payload", Input{MIMEType: "image/jpeg", Data: []byte{1}}, false},
		{"mime only", Input{MIMEType: "image/jpeg"}, false},
		{"data only", Input{Data: []byte{1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsClosedErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("receive: %w", io.EOF), true},
		{"net closed", net.ErrClosed, true},
		{"websocket normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"websocket going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"plain failure", errors.New("stream corrupted"), false},
		{"nil-adjacent failure", fmt.Errorf("decode: %w", errors.New("bad frame")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isClosedErr(tt.err); got != tt.want {
				t.Errorf("isClosedErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	var err error = &ConnectError{Model: "models/x", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ConnectError should unwrap to its cause")
	}

	err = &SendError{MIMEType: "image/jpeg", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("SendError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("pipeline: %w", &SendError{Err: cause})
	var sendErr *SendError
	if !errors.As(wrapped, &sendErr) {
		t.Error("wrapped SendError should be recoverable with errors.As")
	}
}
