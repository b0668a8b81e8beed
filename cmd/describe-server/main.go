// describe-server exposes the description pipeline over HTTP.
//
// POST /describe accepts raw video bytes, optionally signed with
// X-Signature-256 when DESCRIBE_WEBHOOK_SECRET is set, and responds with the
// aggregated description as JSON. GET /health is a liveness probe.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/video-describe/internal/api"
	"github.com/fpang/video-describe/internal/auth"
	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/logging"
	"github.com/fpang/video-describe/internal/media"
	"github.com/fpang/video-describe/internal/pipeline"
	"github.com/fpang/video-describe/internal/prompts"
)

func main() {
	start := time.Now()
	logging.Init()

	if err := media.CheckFFmpegAvailable(); err != nil {
		log.Fatal().Err(err).Msg("ffmpeg/ffprobe not available on PATH")
	}

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}

	client, err := live.NewGeminiClient(context.Background(), apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	defaults := pipeline.Options{
		SystemInstruction: prompts.VideoSystemInstruction,
	}
	describe := func(ctx context.Context, data []byte, opts pipeline.Options) (*pipeline.Result, error) {
		return pipeline.DescribeBytes(ctx, client, data, opts)
	}

	secret := os.Getenv("DESCRIBE_WEBHOOK_SECRET")
	if secret == "" {
		log.Warn().Msg("DESCRIBE_WEBHOOK_SECRET not set, request signatures are not checked")
	}
	handler := api.NewHandler(secret, defaults, describe)

	port := logging.EnvOrDefault("PORT", "8080")

	logging.NewStartupLogger("describe-server").
		Feature("signatureCheck", secret != "").
		Config("port", port).
		Config("model", live.DefaultModel).
		InitDuration(time.Since(start)).
		Log()

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Mux(),
		// Uploads are size-limited, not time-limited; keep the write timeout
		// above the pipeline's default deadline.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	log.Info().Str("port", port).Msg("describe-server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server exited")
	}
}
