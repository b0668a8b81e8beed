// Package prompts provides embedded prompt text for the live analysis session.
//
// Prompt text is stored as files under text/ and embedded at compile time so
// the binaries stay self-contained.
package prompts

import (
	_ "embed"
	"strings"
)

// VideoSystemInstruction is the system instruction sent when opening a live
// session. It frames the model as a video analysis assistant that describes
// incoming frames and audio.
//
//go:embed text/video-system.txt
var VideoSystemInstruction string

func init() {
	VideoSystemInstruction = strings.TrimSpace(VideoSystemInstruction)
}
