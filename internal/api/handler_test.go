package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fpang/video-describe/internal/live"
	"github.com/fpang/video-describe/internal/media"
	"github.com/fpang/video-describe/internal/pipeline"
)

const testSecret = "my_test_secret"

func okDescribe(result *pipeline.Result, err error) DescribeFunc {
	return func(ctx context.Context, data []byte, opts pipeline.Options) (*pipeline.Result, error) {
		return result, err
	}
}

func newTestHandler(describe DescribeFunc) *Handler {
	return NewHandler(testSecret, pipeline.Options{}, describe)
}

func signPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postDescribe(h *Handler, payload, signature string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/describe", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("X-Signature-256", signature)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Health Tests ---

func TestHealth(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	h.Mux().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("health body not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body["status"])
	}
}

// --- Describe (POST) Tests ---

func TestDescribe_ValidSignature(t *testing.T) {
	result := &pipeline.Result{
		RunID:      "run-1",
		Text:       "a quiet street scene",
		Status:     pipeline.StatusCompleted,
		FramesSent: 3,
		Elapsed:    1500 * time.Millisecond,
	}
	h := newTestHandler(okDescribe(result, nil))

	payload := "fake video bytes"
	rr := postDescribe(h, payload, signPayload(testSecret, payload), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp describeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp.Description != "a quiet street scene" {
		t.Errorf("unexpected description '%s'", resp.Description)
	}
	if resp.Status != "completed" {
		t.Errorf("expected status 'completed', got '%s'", resp.Status)
	}
	if resp.FramesSent != 3 {
		t.Errorf("expected 3 frames, got %d", resp.FramesSent)
	}
	if resp.ElapsedMS != 1500 {
		t.Errorf("expected 1500 ms, got %d", resp.ElapsedMS)
	}
}

func TestDescribe_InvalidSignature(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))
	payload := "fake video bytes"

	rr := postDescribe(h, payload, signPayload("wrong_secret", payload), nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestDescribe_MissingSignature(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))

	rr := postDescribe(h, "fake video bytes", "", nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestDescribe_NoSecretSkipsSignature(t *testing.T) {
	h := NewHandler("", pipeline.Options{}, okDescribe(&pipeline.Result{Status: pipeline.StatusCompleted}, nil))

	rr := postDescribe(h, "fake video bytes", "", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 without configured secret, got %d", rr.Code)
	}
}

func TestDescribe_EmptyBody(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))

	rr := postDescribe(h, "", signPayload(testSecret, ""), nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestDescribe_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))
	req := httptest.NewRequest(http.MethodGet, "/describe", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}

func TestDescribe_OptionsHeaderOverrides(t *testing.T) {
	var captured pipeline.Options
	describe := func(ctx context.Context, data []byte, opts pipeline.Options) (*pipeline.Result, error) {
		captured = opts
		return &pipeline.Result{Status: pipeline.StatusCompleted}, nil
	}
	h := newTestHandler(describe)

	payload := "fake video bytes"
	header := http.Header{}
	header.Set("X-Describe-Options",
		`{"frame_interval_ms":500,"max_duration_s":5,"timeout_s":30,"model":"models/custom","end_turn_after_streams":true}`)

	rr := postDescribe(h, payload, signPayload(testSecret, payload), header)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.FrameInterval != 500*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 500ms", captured.FrameInterval)
	}
	if captured.MaxDuration != 5*time.Second {
		t.Errorf("MaxDuration = %v, want 5s", captured.MaxDuration)
	}
	if captured.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", captured.Timeout)
	}
	if captured.Model != "models/custom" {
		t.Errorf("Model = %q, want models/custom", captured.Model)
	}
	if captured.TurnPolicy != pipeline.EndTurnAfterStreams {
		t.Errorf("TurnPolicy = %v, want EndTurnAfterStreams", captured.TurnPolicy)
	}
}

func TestDescribe_FencedOptionsHeader(t *testing.T) {
	var captured pipeline.Options
	describe := func(ctx context.Context, data []byte, opts pipeline.Options) (*pipeline.Result, error) {
		captured = opts
		return &pipeline.Result{Status: pipeline.StatusCompleted}, nil
	}
	h := newTestHandler(describe)

	payload := "fake video bytes"
	header := http.Header{}
	header.Set("X-Describe-Options", "```json\n{\"model\":\"models/fenced\"}\n```")

	rr := postDescribe(h, payload, signPayload(testSecret, payload), header)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Model != "models/fenced" {
		t.Errorf("Model = %q, want models/fenced", captured.Model)
	}
}

func TestDescribe_BadOptionsHeader(t *testing.T) {
	h := newTestHandler(okDescribe(&pipeline.Result{}, nil))

	payload := "fake video bytes"
	header := http.Header{}
	header.Set("X-Describe-Options", "not json at all")

	rr := postDescribe(h, payload, signPayload(testSecret, payload), header)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestDescribe_UnusableMedia(t *testing.T) {
	mediaErr := &media.Error{Path: "upload", Op: "probe", Err: errors.New("no video stream")}
	h := newTestHandler(okDescribe(nil, mediaErr))

	payload := "not actually a video"
	rr := postDescribe(h, payload, signPayload(testSecret, payload), nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestDescribe_ConnectFailure(t *testing.T) {
	connErr := &live.ConnectError{Model: "m", Err: errors.New("handshake refused")}
	h := newTestHandler(okDescribe(nil, connErr))

	payload := "fake video bytes"
	rr := postDescribe(h, payload, signPayload(testSecret, payload), nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestDescribe_FailedRunKeepsPartial(t *testing.T) {
	result := &pipeline.Result{
		RunID:  "run-2",
		Text:   "partial text",
		Status: pipeline.StatusFailed,
		Err:    errors.New("transport down"),
	}
	h := newTestHandler(okDescribe(result, errors.New("transport down")))

	payload := "fake video bytes"
	rr := postDescribe(h, payload, signPayload(testSecret, payload), nil)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	var resp describeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp.Description != "partial text" {
		t.Errorf("failed run should keep partial text, got '%s'", resp.Description)
	}
	if resp.Error == "" {
		t.Error("failed run should report the error")
	}
}
