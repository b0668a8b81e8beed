package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/video-describe/internal/media"
)

// FrameSource is the slice of a media source the frame producer needs.
type FrameSource interface {
	Duration() float64
	SampleFrame(ctx context.Context, t float64, maxEdge int) (*media.Frame, error)
}

// AudioSource is the slice of a media source the audio producer needs.
type AudioSource interface {
	HasAudio() bool
	AudioSamples(ctx context.Context, targetRate int) ([]byte, error)
}

// frameProducer samples frames at a fixed interval and pushes them onto the
// queue in real time: one frame, then a pacing sleep, so the session receives
// frames at roughly the rate a live viewer would.
type frameProducer struct {
	src      FrameSource
	interval time.Duration
	maxDur   time.Duration
	maxEdge  int
	out      chan<- Unit
}

func (p *frameProducer) run(ctx context.Context) error {
	total := expectedFrames(p.src.Duration(), p.maxDur, p.interval)
	log.Debug().Int("frames", total).Dur("interval", p.interval).Msg("Frame producer starting")

	for i := 0; i < total; i++ {
		t := float64(i) * p.interval.Seconds()

		frame, err := p.src.SampleFrame(ctx, t, p.maxEdge)
		if err != nil {
			return fmt.Errorf("frame at %.2fs: %w", t, err)
		}

		select {
		case p.out <- FrameUnit{Frame: frame}:
		case <-ctx.Done():
			return ctx.Err()
		}

		// Real-time pacing before the next sample.
		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Debug().Int("frames", total).Msg("Frame producer finished")
	return nil
}

// audioProducer resamples the audio track to mono 16-bit PCM, splits it into
// fixed-size chunks, and pushes each chunk paced to its real playback duration.
// No-op when the source has no audio track.
type audioProducer struct {
	src        AudioSource
	sampleRate int
	out        chan<- Unit
}

func (p *audioProducer) run(ctx context.Context) error {
	if !p.src.HasAudio() {
		log.Debug().Msg("No audio track, audio producer idle")
		return nil
	}

	pcm, err := p.src.AudioSamples(ctx, p.sampleRate)
	if err != nil {
		return fmt.Errorf("audio extraction: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	chunkBytes := AudioChunkSamples * 2 // 16-bit samples
	chunkDur := time.Duration(float64(AudioChunkSamples) / float64(p.sampleRate) * float64(time.Second))
	chunks := (len(pcm) + chunkBytes - 1) / chunkBytes

	log.Debug().Int("chunks", chunks).Dur("chunk_duration", chunkDur).Msg("Audio producer starting")

	for i := 0; i < len(pcm); i += chunkBytes {
		end := i + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}

		unit := AudioUnit{
			Timestamp: float64(i/2) / float64(p.sampleRate),
			PCM:       pcm[i:end],
		}

		select {
		case p.out <- unit:
		case <-ctx.Done():
			return ctx.Err()
		}

		// Pace to the chunk's playback duration.
		select {
		case <-time.After(chunkDur):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Debug().Int("chunks", chunks).Msg("Audio producer finished")
	return nil
}
