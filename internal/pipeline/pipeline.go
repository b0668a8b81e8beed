// Package pipeline streams a video's frames and audio to a remote analysis
// session in real time and aggregates the streamed response into one result.
//
// Four workers run under a single cancellation scope: the frame producer and
// audio producer feed a bounded queue, the sender drains it into the session,
// and the collector reads the session's response stream. An unhandled failure
// in any worker cancels the other three; the media source and session are
// released on every exit path.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/media"
)

// MediaSource is the opened video resource the pipeline consumes.
// *media.Source satisfies it; tests use in-memory doubles.
type MediaSource interface {
	FrameSource
	AudioSource
	Close() error
}

// Describe streams src to a session from client and returns the aggregated
// description. src is closed before Describe returns, on every path.
//
// On deadline expiry the partial text collected so far is returned with
// StatusTruncated and a nil error; the caller decides whether that is usable.
// Any other worker failure cancels the run and is returned as the error,
// alongside a StatusFailed result carrying the partial text.
func Describe(ctx context.Context, client live.Client, src MediaSource, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	runID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	defer src.Close()

	log.Info().
		Str("run_id", runID).
		Str("model", opts.Model).
		Dur("frame_interval", opts.FrameInterval).
		Dur("max_duration", opts.MaxDuration).
		Msg("Pipeline connecting")

	session, err := client.Connect(ctx, opts.Model, &live.SessionConfig{
		SystemInstruction: opts.SystemInstruction,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	frames := expectedFrames(src.Duration(), opts.MaxDuration, opts.FrameInterval)
	log.Info().Str("run_id", runID).Int("expected_frames", frames).Msg("Pipeline streaming")

	out := make(chan Unit, opts.QueueCapacity)

	frameProd := &frameProducer{
		src:      src,
		interval: opts.FrameInterval,
		maxDur:   opts.MaxDuration,
		maxEdge:  opts.MaxEdge,
		out:      out,
	}
	audioProd := &audioProducer{
		src:        src,
		sampleRate: opts.SampleRate,
		out:        out,
	}
	sender := &sessionSender{
		session:        session,
		expectedFrames: frames,
		policy:         opts.TurnPolicy,
		sampleRate:     opts.SampleRate,
	}
	collector := &responseCollector{session: session}

	group, gctx := errgroup.WithContext(ctx)

	// Producers get their own group so the queue can be closed exactly when
	// both have finished: the close is the sender's end-of-input sentinel.
	producers, pctx := errgroup.WithContext(gctx)
	producers.Go(func() error { return frameProd.run(pctx) })
	producers.Go(func() error { return audioProd.run(pctx) })

	group.Go(func() error {
		defer close(out)
		if err := producers.Wait(); err != nil {
			return err
		}
		log.Info().Str("run_id", runID).Msg("Pipeline draining")
		return nil
	})
	group.Go(func() error { return sender.run(gctx, out) })
	group.Go(func() error { return collector.run(gctx) })

	// Receive blocks on the transport, not on the context. Closing the
	// session when the scope is cancelled unblocks the collector; Close is
	// idempotent so the deferred close stays safe.
	go func() {
		<-gctx.Done()
		session.Close()
	}()

	err = group.Wait()
	elapsed := time.Since(start)

	result := &Result{
		Text:            collector.Text(),
		RunID:           runID,
		FramesSent:      sender.framesSent,
		AudioChunksSent: sender.audioSent,
		Elapsed:         elapsed,
	}

	switch {
	case err == nil:
		result.Status = StatusCompleted
		log.Info().
			Str("run_id", runID).
			Int("frames", result.FramesSent).
			Int("audio_chunks", result.AudioChunksSent).
			Int("text_length", len(result.Text)).
			Dur("elapsed", elapsed).
			Msg("Pipeline completed")
		return result, nil

	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusTruncated
		result.Err = err
		log.Warn().
			Str("run_id", runID).
			Dur("elapsed", elapsed).
			Int("text_length", len(result.Text)).
			Msg("Pipeline deadline exceeded, returning truncated result")
		return result, nil

	default:
		result.Status = StatusFailed
		result.Err = err
		log.Error().
			Str("run_id", runID).
			Err(err).
			Dur("elapsed", elapsed).
			Msg("Pipeline failed")
		return result, err
	}
}

// DescribeFile opens a video file and runs Describe on it.
func DescribeFile(ctx context.Context, client live.Client, path string, opts Options) (*Result, error) {
	src, err := media.Open(path)
	if err != nil {
		return nil, err
	}
	return Describe(ctx, client, src, opts)
}

// DescribeBytes materializes raw video bytes and runs Describe on them.
// The temporary file backing the bytes is removed when the run ends.
func DescribeBytes(ctx context.Context, client live.Client, data []byte, opts Options) (*Result, error) {
	src, err := media.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return Describe(ctx, client, src, opts)
}
