package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/media"
)

// stubSource is an in-memory MediaSource.
type stubSource struct {
	duration float64
	pcm      []byte // nil means no audio track

	frameDelay  func(t float64) error // optional per-frame failure injection
	closeCalls  atomic.Int32
	sampleCalls atomic.Int32
}

func (s *stubSource) Duration() float64 { return s.duration }
func (s *stubSource) HasAudio() bool    { return len(s.pcm) > 0 }

func (s *stubSource) SampleFrame(ctx context.Context, t float64, maxEdge int) (*media.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.frameDelay != nil {
		if err := s.frameDelay(t); err != nil {
			return nil, err
		}
	}
	s.sampleCalls.Add(1)
	return &media.Frame{
		Timestamp: t,
		Data:      bytes.Repeat([]byte{0xFF}, 16),
		Width:     640,
		Height:    480,
	}, nil
}

func (s *stubSource) AudioSamples(ctx context.Context, targetRate int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.pcm, nil
}

func (s *stubSource) Close() error {
	s.closeCalls.Add(1)
	return nil
}

// sentRecord captures one Send call observed by the stub session.
type sentRecord struct {
	MIMEType  string
	Bytes     int
	EndOfTurn bool
}

// stubSession is an in-memory live.Session. On receiving endOfTurn it emits
// one text fragment and then closes, mimicking the remote responding to the
// turn and hanging up.
type stubSession struct {
	mu    sync.Mutex
	sends []sentRecord

	events chan live.Event
	closed chan struct{}
	once   sync.Once

	// failSendAt makes the Nth Send call (1-based) fail. Zero disables.
	failSendAt int
	// textOnFirstSend emits a fragment as soon as streaming starts, so
	// truncation tests have partial text to collect.
	textOnFirstSend string
	responseText    string
}

func newStubSession() *stubSession {
	return &stubSession{
		events:       make(chan live.Event, 16),
		closed:       make(chan struct{}),
		responseText: "a quiet street scene",
	}
}

func (s *stubSession) Send(ctx context.Context, in live.Input, endOfTurn bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sends = append(s.sends, sentRecord{MIMEType: in.MIMEType, Bytes: len(in.Data), EndOfTurn: endOfTurn})
	n := len(s.sends)
	s.mu.Unlock()

	if s.failSendAt > 0 && n >= s.failSendAt {
		return &live.SendError{MIMEType: in.MIMEType, Err: fmt.Errorf("stub transport down")}
	}

	if n == 1 && s.textOnFirstSend != "" {
		s.events <- live.Event{Text: s.textOnFirstSend}
	}

	if endOfTurn {
		s.events <- live.Event{Text: s.responseText, TurnComplete: true}
		s.once.Do(func() { close(s.closed) })
	}
	return nil
}

func (s *stubSession) Receive() (live.Event, error) {
	// Drain buffered events before reporting closure.
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return live.Event{}, live.ErrSessionClosed
	}
}

func (s *stubSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Sends returns a copy of the recorded Send calls.
func (s *stubSession) Sends() []sentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentRecord, len(s.sends))
	copy(out, s.sends)
	return out
}

// stubClient hands out a fixed session.
type stubClient struct {
	session    *stubSession
	connectErr error
}

func (c *stubClient) Connect(ctx context.Context, model string, cfg *live.SessionConfig) (live.Session, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.session, nil
}
