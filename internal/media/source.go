// Package media opens local video resources for the streaming pipeline.
//
// ffprobe supplies container metadata and ffmpeg performs the actual frame and
// audio decoding, because pure Go decoders cover only a fraction of the
// containers and codecs phones actually produce.
package media

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Source is an opened video resource. It owns the underlying file handle and,
// when created from raw bytes, the temporary file backing it. A Source is safe
// to close more than once; only the first Close releases anything.
type Source struct {
	path     string
	meta     *Metadata
	tempFile bool

	closeOnce sync.Once
}

// Open opens a video file and probes its streams.
// Returns an *Error if the file is unreadable or has no decodable video stream.
func Open(path string) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	return probeAndWrap(path, false)
}

// FromBytes materializes raw video bytes into a temporary file and opens it.
// The temporary file is deleted when the Source is closed.
func FromBytes(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, &Error{Op: "open", Err: fmt.Errorf("empty video payload")}
	}

	tmp, err := os.CreateTemp("", "video-describe-*.mp4")
	if err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	path := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, &Error{Path: path, Op: "open", Err: fmt.Errorf("failed to write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return nil, &Error{Path: path, Op: "open", Err: err}
	}

	log.Debug().Str("path", path).Int("size", len(data)).Msg("Materialized video bytes to temp file")

	src, err := probeAndWrap(path, true)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return src, nil
}

func probeAndWrap(path string, tempFile bool) (*Source, error) {
	meta, err := probeFile(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "probe", Err: err}
	}
	if !meta.HasVideo {
		return nil, &Error{Path: path, Op: "probe", Err: fmt.Errorf("no decodable video stream")}
	}

	log.Info().
		Str("path", path).
		Dur("duration", meta.Duration).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Float64("frame_rate", meta.FrameRate).
		Str("codec", meta.Codec).
		Bool("has_audio", meta.HasAudio).
		Msg("Video source opened")

	return &Source{path: path, meta: meta, tempFile: tempFile}, nil
}

// Path returns the filesystem path backing the source.
func (s *Source) Path() string { return s.path }

// Metadata returns the probed stream metadata.
func (s *Source) Metadata() *Metadata { return s.meta }

// Duration returns the container duration in seconds.
func (s *Source) Duration() float64 { return s.meta.Duration.Seconds() }

// HasAudio reports whether the container carries an audio stream.
func (s *Source) HasAudio() bool { return s.meta.HasAudio }

// Close releases the source. When the source was materialized from raw bytes
// the backing temporary file is removed. Closing twice is a no-op.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.tempFile {
			if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", s.path).Msg("Failed to remove temp video file")
			} else {
				log.Debug().Str("path", s.path).Msg("Temp video file removed")
			}
		}
	})
	return nil
}

// Metadata contains the stream properties the pipeline needs, extracted from
// ffprobe's JSON output.
type Metadata struct {
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string

	HasVideo bool

	HasAudio        bool
	AudioCodec      string
	AudioSampleRate int
	AudioChannels   int
}

// Error describes a media decoding failure. These are fatal: an unreadable
// file or unsupported codec will not succeed on retry.
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("media %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("media %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
