package media

// audio.go extracts the audio track as raw mono 16-bit PCM via ffmpeg.

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// DefaultSampleRate is the PCM sample rate the live session expects.
const DefaultSampleRate = 16000

// AudioSamples decodes the audio track, downmixed to mono and resampled to
// targetRate, as little-endian signed 16-bit PCM. Returns an empty slice when
// the container has no audio stream.
func (s *Source) AudioSamples(ctx context.Context, targetRate int) ([]byte, error) {
	if !s.meta.HasAudio {
		return nil, nil
	}
	if targetRate <= 0 {
		targetRate = DefaultSampleRate
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, &Error{Path: s.path, Op: "audio", Err: fmt.Errorf("ffmpeg not found: %w", err)}
	}

	// s16le to stdout: no container, just the sample stream.
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", s.path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", targetRate),
		"-",
	)
	pcm, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Path: s.path, Op: "audio", Err: fmt.Errorf("ffmpeg audio extraction failed: %w", err)}
	}

	// Guard against a trailing odd byte from a truncated write.
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	log.Debug().
		Int("bytes", len(pcm)).
		Int("samples", len(pcm)/2).
		Int("rate", targetRate).
		Msg("Audio track extracted")

	return pcm, nil
}
