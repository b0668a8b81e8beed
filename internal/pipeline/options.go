package pipeline

import (
	"math"
	"time"

	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/media"
	"github.com/fpang/video-describe/internal/prompts"
)

// TurnPolicy selects when the input turn is closed.
type TurnPolicy int

const (
	// EndTurnOnLastFrame closes the turn as soon as the last expected frame
	// has been sent, even if audio chunks are still queued. This mirrors how
	// a live viewer interrupts: the model may respond before hearing the
	// trailing audio.
	EndTurnOnLastFrame TurnPolicy = iota

	// EndTurnAfterStreams closes the turn only after both the frame and audio
	// streams are fully drained.
	EndTurnAfterStreams
)

// Defaults for Options fields left zero.
const (
	DefaultFrameInterval = 1 * time.Second
	DefaultMaxDuration   = 10 * time.Second
	DefaultQueueCapacity = 16
	DefaultTimeout       = 60 * time.Second

	// AudioChunkSamples is the fixed chunk size, in samples, for PCM audio.
	AudioChunkSamples = 1024
)

// Options configures one pipeline run.
type Options struct {
	// FrameInterval is the sampling interval between frames (default 1s).
	FrameInterval time.Duration

	// MaxDuration caps how much of the video is processed (default 10s),
	// clamped to the real duration.
	MaxDuration time.Duration

	// MaxEdge bounds frame dimensions (default media.DefaultMaxEdge).
	MaxEdge int

	// SampleRate is the PCM sample rate sent to the session (default 16 kHz).
	SampleRate int

	// QueueCapacity bounds the outgoing queue (default 16).
	QueueCapacity int

	// Timeout bounds the whole run (default 60s).
	Timeout time.Duration

	// Model selects the remote analysis model (default live.DefaultModel).
	Model string

	// SystemInstruction overrides the default video analysis instruction.
	SystemInstruction string

	// TurnPolicy selects when the input turn ends (default EndTurnOnLastFrame,
	// the original behavior).
	TurnPolicy TurnPolicy
}

// withDefaults fills zero fields with their defaults.
func (o Options) withDefaults() Options {
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.MaxEdge <= 0 {
		o.MaxEdge = media.DefaultMaxEdge
	}
	if o.SampleRate <= 0 {
		o.SampleRate = media.DefaultSampleRate
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Model == "" {
		o.Model = live.DefaultModel
	}
	if o.SystemInstruction == "" {
		o.SystemInstruction = prompts.VideoSystemInstruction
	}
	return o
}

// expectedFrames returns how many frames the producer will emit for a video
// of the given duration: ceil(min(duration, maxDuration) / interval).
func expectedFrames(duration float64, maxDuration, interval time.Duration) int {
	capped := math.Min(duration, maxDuration.Seconds())
	if capped <= 0 {
		return 0
	}
	return int(math.Ceil(capped / interval.Seconds()))
}
