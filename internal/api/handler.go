// Package api exposes the description pipeline over HTTP.
//
// Health (GET /health):
//
//	Liveness probe. Responds with a small JSON document so load balancers
//	and process supervisors can tell the server apart from a dead port.
//
// Describe (POST /describe):
//
//	The raw video bytes are the request body. When a shared secret is
//	configured, the body must be signed with X-Signature-256 (HMAC-SHA256,
//	"sha256=<hex>"). Per-request overrides travel in the optional
//	X-Describe-Options header as a JSON object.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/video-describe/internal/jsonutil"
	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/media"
	"github.com/fpang/video-describe/internal/pipeline"
)

// maxBodySize is the maximum allowed request body size (64 MB). Clips longer
// than the pipeline's max analysis window gain nothing from being uploaded
// whole, so the cap stays modest.
const maxBodySize = 64 << 20

// DescribeFunc runs the pipeline on raw video bytes. The indirection keeps
// the handler testable without a live session.
type DescribeFunc func(ctx context.Context, data []byte, opts pipeline.Options) (*pipeline.Result, error)

// Handler serves the describe endpoint.
type Handler struct {
	secret   string
	defaults pipeline.Options
	describe DescribeFunc
}

// NewHandler creates a handler. secret signs request bodies; an empty secret
// disables signature checking (local development only). defaults seed every
// request's pipeline options before header overrides apply.
func NewHandler(secret string, defaults pipeline.Options, describe DescribeFunc) *Handler {
	return &Handler{
		secret:   secret,
		defaults: defaults,
		describe: describe,
	}
}

// Mux returns a ServeMux with the handler's routes mounted.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/describe", h)
	return mux
}

// ServeHTTP handles POST /describe.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.handleDescribe(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// requestOptions carries per-request overrides from the X-Describe-Options
// header. Absent or zero fields fall back to the server defaults.
type requestOptions struct {
	FrameIntervalMS     int    `json:"frame_interval_ms"`
	MaxDurationSeconds  int    `json:"max_duration_s"`
	TimeoutSeconds      int    `json:"timeout_s"`
	Model               string `json:"model"`
	EndTurnAfterStreams bool   `json:"end_turn_after_streams"`
}

// describeResponse is the JSON document returned for every finished run.
type describeResponse struct {
	RunID           string `json:"run_id"`
	Status          string `json:"status"`
	Description     string `json:"description"`
	FramesSent      int    `json:"frames_sent"`
	AudioChunksSent int    `json:"audio_chunks_sent"`
	ElapsedMS       int64  `json:"elapsed_ms"`
	Error           string `json:"error,omitempty"`
}

func (h *Handler) handleDescribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Describe request: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		log.Warn().Msg("Describe request: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if h.secret != "" {
		signature := r.Header.Get("X-Signature-256")
		if signature == "" {
			log.Warn().Msg("Describe request: missing X-Signature-256 header")
			http.Error(w, "missing signature", http.StatusForbidden)
			return
		}
		if !h.verifySignature(body, signature) {
			log.Warn().Msg("Describe request: invalid signature")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	opts, err := h.requestPipelineOptions(r)
	if err != nil {
		log.Warn().Err(err).Msg("Describe request: bad X-Describe-Options header")
		http.Error(w, "invalid options header", http.StatusBadRequest)
		return
	}

	log.Info().
		Int("bodySize", len(body)).
		Str("model", opts.Model).
		Msg("Describe request accepted")

	result, err := h.describe(r.Context(), body, opts)
	if err != nil {
		var mediaErr *media.Error
		if errors.As(err, &mediaErr) {
			log.Warn().Err(err).Msg("Describe request: unusable media")
			http.Error(w, "unusable media: "+mediaErr.Op, http.StatusBadRequest)
			return
		}
		var connErr *live.ConnectError
		if errors.As(err, &connErr) {
			log.Error().Err(err).Msg("Describe request: session handshake failed")
			http.Error(w, "analysis session unavailable", http.StatusServiceUnavailable)
			return
		}
		if result == nil {
			log.Error().Err(err).Msg("Describe request failed before streaming")
			http.Error(w, "description failed", http.StatusBadGateway)
			return
		}
		// A failed run still reports what it managed to collect.
		writeJSON(w, http.StatusBadGateway, resultToResponse(result))
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(result))
}

// requestPipelineOptions merges X-Describe-Options overrides into the server
// defaults. The header value may arrive fenced or prose-wrapped when relayed
// by LLM-driven clients, so parsing goes through jsonutil.
func (h *Handler) requestPipelineOptions(r *http.Request) (pipeline.Options, error) {
	opts := h.defaults

	header := r.Header.Get("X-Describe-Options")
	if header == "" {
		return opts, nil
	}

	overrides, err := jsonutil.ParseJSON[requestOptions](header)
	if err != nil {
		return opts, err
	}

	if overrides.FrameIntervalMS > 0 {
		opts.FrameInterval = time.Duration(overrides.FrameIntervalMS) * time.Millisecond
	}
	if overrides.MaxDurationSeconds > 0 {
		opts.MaxDuration = time.Duration(overrides.MaxDurationSeconds) * time.Second
	}
	if overrides.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(overrides.TimeoutSeconds) * time.Second
	}
	if overrides.Model != "" {
		opts.Model = overrides.Model
	}
	if overrides.EndTurnAfterStreams {
		opts.TurnPolicy = pipeline.EndTurnAfterStreams
	}
	return opts, nil
}

// verifySignature validates the X-Signature-256 header value against the
// HMAC-SHA256 of the body using the shared secret.
//
// The header format is: "sha256=<hex-encoded hash>"
//
// Uses hmac.Equal for constant-time comparison to prevent timing attacks.
func (h *Handler) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	receivedBytes, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	return hmac.Equal(receivedBytes, mac.Sum(nil))
}

func resultToResponse(result *pipeline.Result) describeResponse {
	resp := describeResponse{
		RunID:           result.RunID,
		Status:          result.Status.String(),
		Description:     result.Text,
		FramesSent:      result.FramesSent,
		AudioChunksSent: result.AudioChunksSent,
		ElapsedMS:       result.Elapsed.Milliseconds(),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
