package pipeline

import "github.com/fpang/video-describe/internal/media"

// Unit is one item on the outgoing queue: a video frame, an audio chunk, or
// the turn marker. The sealed interface keeps the variant closed so the
// sender's type switch stays exhaustive.
type Unit interface {
	isUnit()
}

// FrameUnit carries one encoded video frame.
type FrameUnit struct {
	Frame *media.Frame
}

// AudioUnit carries one fixed-size block of mono 16-bit PCM samples.
type AudioUnit struct {
	// Timestamp is the chunk's start position in seconds.
	Timestamp float64

	// PCM is little-endian signed 16-bit mono samples.
	PCM []byte
}

// TurnMarker carries no payload. It signals that the current input turn is
// complete and the remote session should respond.
type TurnMarker struct{}

func (FrameUnit) isUnit()  {}
func (AudioUnit) isUnit()  {}
func (TurnMarker) isUnit() {}
