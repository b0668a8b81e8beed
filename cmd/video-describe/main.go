package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/video-describe/internal/auth"
	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/logging"
	"github.com/fpang/video-describe/internal/media"
	"github.com/fpang/video-describe/internal/pipeline"
	"github.com/fpang/video-describe/internal/prompts"
)

// CLI flags
var (
	frameIntervalFlag       time.Duration
	maxDurationFlag         time.Duration
	timeoutFlag             time.Duration
	modelFlag               string
	outputFlag              string
	endTurnAfterStreamsFlag bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "video-describe <video-file>",
	Short: "AI-powered video description over a live streaming session",
	Long: `Video Describe streams a video's frames and audio to a Gemini Live session
in real time and prints the model's description of the content.

Frames are sampled at a fixed interval and sent as JPEG; the audio track, if
present, is sent as 16 kHz mono PCM alongside them. The description is
aggregated from the session's streamed response and written next to the
input file.

Examples:
  video-describe clip.mp4
  video-describe clip.mp4 --frame-interval 500ms --max-duration 20s
  video-describe clip.mp4 -m models/gemini-2.0-flash-exp -o description.txt
  video-describe clip.mp4 --end-turn-after-streams`,
	Args: cobra.ExactArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().DurationVar(&frameIntervalFlag, "frame-interval", pipeline.DefaultFrameInterval, "Interval between sampled frames")
	rootCmd.Flags().DurationVar(&maxDurationFlag, "max-duration", pipeline.DefaultMaxDuration, "Maximum span of video to analyze")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", pipeline.DefaultTimeout, "Overall deadline for the run")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", live.DefaultModel, "Gemini model to use")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: <video>_description.txt)")
	rootCmd.Flags().BoolVar(&endTurnAfterStreamsFlag, "end-turn-after-streams", false, "Close the input turn only after both streams drain")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	videoPath := args[0]
	info, err := os.Stat(videoPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", videoPath).Msg("Video file not found")
		}
		log.Fatal().Err(err).Str("path", videoPath).Msg("Failed to access video file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", videoPath).Msg("Path is a directory, expected a video file")
	}

	if err := media.CheckFFmpegAvailable(); err != nil {
		log.Fatal().Err(err).Msg("ffmpeg/ffprobe not available on PATH")
	}

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}

	ctx := context.Background()
	client, err := live.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	opts := pipeline.Options{
		FrameInterval:     frameIntervalFlag,
		MaxDuration:       maxDurationFlag,
		Timeout:           timeoutFlag,
		Model:             modelFlag,
		SystemInstruction: prompts.VideoSystemInstruction,
	}
	if endTurnAfterStreamsFlag {
		opts.TurnPolicy = pipeline.EndTurnAfterStreams
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("🎬 Video Description")
	fmt.Println("============================================")
	fmt.Printf("File: %s\n", filepath.Base(videoPath))
	fmt.Printf("Size: %.2f MB\n", float64(info.Size())/(1024*1024))
	fmt.Printf("Model: %s\n", modelFlag)
	fmt.Printf("Frame interval: %s\n", frameIntervalFlag)
	fmt.Println("--------------------------------------------")
	fmt.Println("⏳ Streaming frames and audio to Gemini...")
	fmt.Println()

	result, err := pipeline.DescribeFile(ctx, client, videoPath, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to describe video")
	}

	switch result.Status {
	case pipeline.StatusTruncated:
		fmt.Println("⚠️  Deadline reached, description may be incomplete")
	default:
		fmt.Println("✅ Description Complete!")
	}
	fmt.Println("============================================")
	fmt.Printf("Frames sent: %d\n", result.FramesSent)
	if result.AudioChunksSent > 0 {
		fmt.Printf("Audio chunks sent: %d\n", result.AudioChunksSent)
	}
	fmt.Printf("Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Println()
	fmt.Println(result.Text)

	outPath := outputFlag
	if outPath == "" {
		outPath = defaultOutputPath(videoPath)
	}
	if err := os.WriteFile(outPath, []byte(result.Text+"\n"), 0o644); err != nil {
		log.Error().Err(err).Str("path", outPath).Msg("Failed to write description file")
		return
	}
	log.Info().Str("path", outPath).Msg("Description written")
}

// defaultOutputPath derives <video>_description.txt next to the input file.
func defaultOutputPath(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	return base + "_description.txt"
}
