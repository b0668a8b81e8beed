package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/video-describe/internal/live"
)

// responseCollector reads the session's streamed output and accumulates text
// fragments. The remote closing the connection is the normal termination
// signal, surfaced by the session abstraction as live.ErrSessionClosed.
//
// The text buffer is mutex-guarded so the coordinator can read a partial
// transcript after a timeout cancels the run.
type responseCollector struct {
	session live.Session

	mu    sync.Mutex
	buf   strings.Builder
	turns int
}

func (c *responseCollector) run(ctx context.Context) error {
	for {
		ev, err := c.session.Receive()
		if err != nil {
			if errors.Is(err, live.ErrSessionClosed) {
				log.Debug().Int("turns", c.Turns()).Msg("Session closed, collection complete")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if ev.Text != "" {
			c.mu.Lock()
			c.buf.WriteString(ev.Text)
			c.mu.Unlock()
		}
		if ev.TurnComplete {
			c.mu.Lock()
			c.turns++
			c.mu.Unlock()
			log.Debug().Int("turn", c.Turns()).Msg("Response turn complete")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Text returns the accumulated response text collected so far.
func (c *responseCollector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Turns returns the number of completed response turns observed.
func (c *responseCollector) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}
