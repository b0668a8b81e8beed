package media

// frame.go samples single frames out of the video with ffmpeg and re-encodes
// them as bounded JPEGs for the live session. ffmpeg does the seek and decode;
// the resize runs in pure Go (golang.org/x/image/draw) so the output dimensions
// are exact regardless of the encoder build.

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	// DefaultMaxEdge bounds both frame dimensions for the live session.
	// Larger frames are downscaled preserving aspect ratio.
	DefaultMaxEdge = 768

	// frameJPEGQuality is the encode quality for sampled frames. 85 keeps the
	// payload small without visible artifacts at session resolution.
	frameJPEGQuality = 85
)

// Frame is one encoded still image sampled from the video at a point in time.
// Immutable once constructed.
type Frame struct {
	// Timestamp is the sample position in seconds from the start of the video.
	Timestamp float64

	// Data is the JPEG-encoded pixel buffer.
	Data []byte

	Width  int
	Height int
}

// SampleFrame extracts the frame at offset t (seconds), downscales it so
// neither dimension exceeds maxEdge, and returns it JPEG-encoded.
// Valid for 0 <= t < Duration().
func (s *Source) SampleFrame(ctx context.Context, t float64, maxEdge int) (*Frame, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if t < 0 || (s.Duration() > 0 && t >= s.Duration()) {
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("sample time %.2fs outside duration %.2fs", t, s.Duration())}
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("ffmpeg not found: %w", err)}
	}

	// Decode to a temporary PNG so the Go side gets a lossless intermediate.
	tmp, err := os.CreateTemp("", "frame-*.png")
	if err != nil {
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	// -ss before -i uses the fast keyframe seek, accurate enough at 1 FPS sampling.
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", t),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2",
		"-y", tmpPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("ffmpeg frame extraction at %.2fs failed: %w: %s", t, err, string(output))}
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("failed to read extracted frame: %w", err)}
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, &Error{Path: s.path, Op: "frame", Err: fmt.Errorf("failed to decode extracted frame: %w", err)}
	}

	frame, err := encodeFrame(img, t, maxEdge)
	if err != nil {
		return nil, &Error{Path: s.path, Op: "frame", Err: err}
	}

	log.Debug().
		Float64("t", t).
		Int("width", frame.Width).
		Int("height", frame.Height).
		Int("bytes", len(frame.Data)).
		Msg("Frame sampled")

	return frame, nil
}

// encodeFrame downscales img to fit maxEdge and encodes it as JPEG.
func encodeFrame(img image.Image, t float64, maxEdge int) (*Frame, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	newWidth, newHeight := boundedDimensions(width, height, maxEdge)
	if newWidth != width || newHeight != height {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame as JPEG: %w", err)
	}

	return &Frame{
		Timestamp: t,
		Data:      buf.Bytes(),
		Width:     newWidth,
		Height:    newHeight,
	}, nil
}

// boundedDimensions scales (width, height) down so neither exceeds maxEdge,
// preserving aspect ratio. Dimensions already within the bound are unchanged.
func boundedDimensions(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}

	if width > height {
		newWidth := maxEdge
		newHeight := int(float64(height) * float64(maxEdge) / float64(width))
		if newHeight < 1 {
			newHeight = 1
		}
		return newWidth, newHeight
	}

	newHeight := maxEdge
	newWidth := int(float64(width) * float64(maxEdge) / float64(height))
	if newWidth < 1 {
		newWidth = 1
	}
	return newWidth, newHeight
}
