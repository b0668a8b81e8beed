package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/video-describe/internal/live"
)

// sessionSender drains the outgoing queue in FIFO order and forwards each
// unit to the remote session. It owns the turn boundary: exactly one unit per
// run is sent with endOfTurn set, chosen by the configured TurnPolicy.
type sessionSender struct {
	session        live.Session
	expectedFrames int
	policy         TurnPolicy
	sampleRate     int

	// populated during the run, read by the coordinator afterwards
	framesSent int
	audioSent  int
	turnEnded  bool
}

// run consumes units until the queue closes (both producers finished) or the
// context is cancelled. After a clean drain, the turn is closed if the policy
// has not already closed it.
func (s *sessionSender) run(ctx context.Context, units <-chan Unit) error {
	for {
		var unit Unit
		var ok bool

		select {
		case unit, ok = <-units:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			// Queue closed: both producers are done. Close the turn if no
			// unit carried the marker (EndTurnAfterStreams, or a run that
			// produced fewer frames than expected).
			if !s.turnEnded {
				if err := s.session.Send(ctx, live.Input{}, true); err != nil {
					return fmt.Errorf("closing turn: %w", err)
				}
				s.turnEnded = true
				log.Debug().Msg("Turn closed after stream drain")
			}
			log.Debug().
				Int("frames", s.framesSent).
				Int("audio_chunks", s.audioSent).
				Msg("Sender finished")
			return nil
		}

		in, endOfTurn := s.prepare(unit)
		if err := s.session.Send(ctx, in, endOfTurn); err != nil {
			return err
		}
		if endOfTurn {
			s.turnEnded = true
			log.Debug().Int("frames_sent", s.framesSent).Msg("Turn closed on last frame")
		}
	}
}

// prepare converts a unit to session input and decides whether it closes the
// input turn. Under EndTurnOnLastFrame the marker rides on the first unit
// sent at or past the expected frame count, frame or audio chunk alike.
func (s *sessionSender) prepare(unit Unit) (live.Input, bool) {
	var in live.Input

	switch u := unit.(type) {
	case FrameUnit:
		s.framesSent++
		in = live.Input{MIMEType: "image/jpeg", Data: u.Frame.Data}
	case AudioUnit:
		s.audioSent++
		in = live.Input{MIMEType: fmt.Sprintf("audio/pcm;rate=%d", s.sampleRate), Data: u.PCM}
	case TurnMarker:
		return live.Input{}, true
	}

	if s.policy == EndTurnOnLastFrame && !s.turnEnded &&
		s.expectedFrames > 0 && s.framesSent >= s.expectedFrames {
		return in, true
	}
	return in, false
}
