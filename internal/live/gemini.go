package live

// gemini.go adapts the Gemini Live API (google.golang.org/genai) to the
// Session abstraction. All transport-level closure detection lives here: the
// rest of the repository only sees ErrSessionClosed.

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is the Live API model used when the caller does not pick one.
const DefaultModel = "models/gemini-2.0-flash-exp"

// GeminiClient implements Client over the Gemini Live API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient builds a Live API client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	return &GeminiClient{client: client}, nil
}

// Connect opens a live session configured for text-only responses.
func (c *GeminiClient) Connect(ctx context.Context, model string, cfg *SessionConfig) (Session, error) {
	if model == "" {
		model = DefaultModel
	}

	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
		MediaResolution:    genai.MediaResolutionMedium,
	}
	if cfg != nil && cfg.SystemInstruction != "" {
		liveCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	log.Debug().Str("model", model).Msg("Connecting live session")

	session, err := c.client.Live.Connect(ctx, model, liveCfg)
	if err != nil {
		return nil, &ConnectError{Model: model, Err: err}
	}

	log.Info().Str("model", model).Msg("Live session connected")
	return &geminiSession{session: session}, nil
}

// geminiSession wraps a genai live session.
type geminiSession struct {
	session   *genai.Session
	closeOnce sync.Once
	closeErr  error
}

func (s *geminiSession) Send(ctx context.Context, in Input, endOfTurn bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !in.IsZero() {
		input := genai.LiveRealtimeInput{
			Media: &genai.Blob{MIMEType: in.MIMEType, Data: in.Data},
		}
		if err := s.session.SendRealtimeInput(input); err != nil {
			return &SendError{MIMEType: in.MIMEType, Err: err}
		}
	}

	if endOfTurn {
		// Realtime input has no turn boundary of its own; an empty client
		// content with TurnComplete tells the model to respond.
		content := genai.LiveClientContentInput{TurnComplete: genai.Ptr(true)}
		if err := s.session.SendClientContent(content); err != nil {
			return &SendError{Err: err}
		}
	}

	return nil
}

func (s *geminiSession) Receive() (Event, error) {
	msg, err := s.session.Receive()
	if err != nil {
		if isClosedErr(err) {
			return Event{}, ErrSessionClosed
		}
		return Event{}, err
	}

	var ev Event
	if sc := msg.ServerContent; sc != nil {
		ev.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.Text != "" {
					ev.Text += part.Text
				}
				// Binary payloads (audio responses) are dropped: text-only pipeline.
			}
		}
	}
	return ev, nil
}

func (s *geminiSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close()
		log.Debug().Msg("Live session closed")
	})
	return s.closeErr
}

// isClosedErr reports whether err is the transport saying the connection is
// gone, as opposed to a genuine failure.
func isClosedErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
