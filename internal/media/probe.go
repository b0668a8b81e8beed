package media

// probe.go runs ffprobe and parses its JSON output into Metadata.
// Parsing is separated from process execution so it can be tested on canned
// probe output without ffprobe installed.

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CheckFFmpegAvailable verifies that both ffprobe and ffmpeg are on PATH.
// Call at startup to fail fast before accepting work.
func CheckFFmpegAvailable() error {
	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("%s not found in PATH: install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", tool)
		}
		log.Debug().Str("path", path).Msgf("%s found", tool)
	}
	return nil
}

// ffprobeOutput represents the JSON structure from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// probeFile runs ffprobe with JSON output and parses the result.
func probeFile(path string) (*Metadata, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.Command(ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

// parseProbeOutput converts raw ffprobe JSON into Metadata.
func parseProbeOutput(raw []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &Metadata{}

	if probe.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.Duration = time.Duration(dur * float64(time.Second))
		}
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			meta.HasVideo = true
			if meta.Width == 0 {
				meta.Width = stream.Width
				meta.Height = stream.Height
			}
			if meta.Codec == "" {
				meta.Codec = stream.CodecName
			}
			if meta.FrameRate == 0 && stream.RFrameRate != "" {
				meta.FrameRate = parseFrameRate(stream.RFrameRate)
			}
			// Some containers only carry duration on the stream.
			if meta.Duration == 0 && stream.Duration != "" {
				if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					meta.Duration = time.Duration(dur * float64(time.Second))
				}
			}
		case "audio":
			meta.HasAudio = true
			if meta.AudioCodec == "" {
				meta.AudioCodec = stream.CodecName
			}
			if meta.AudioSampleRate == 0 && stream.SampleRate != "" {
				meta.AudioSampleRate, _ = strconv.Atoi(stream.SampleRate)
			}
			if meta.AudioChannels == 0 {
				meta.AudioChannels = stream.Channels
			}
		}
	}

	return meta, nil
}

// parseFrameRate parses frame rate from ffprobe format (e.g., "60/1" -> 60.0)
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}
