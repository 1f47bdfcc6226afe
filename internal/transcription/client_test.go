package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:       baseURL,
		AuthToken:     "test-token",
		Timeout:       5 * time.Second,
		HealthTimeout: time.Second,
	}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	return client
}

// sseHandler streams the given lines and records the received upload.
func sseHandler(t *testing.T, lines []string, gotAudio *[]byte, gotAuth *string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = r.Header.Get("Authorization")
		}

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("Unexpected request content type %q", r.Header.Get("Content-Type"))
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}

		reader := multipart.NewReader(r.Body, params["boundary"])
		part, err := reader.NextPart()
		if err != nil {
			t.Errorf("Failed to read multipart part: %v", err)
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		if part.FormName() != "audio" {
			t.Errorf("Expected part name %q, got %q", "audio", part.FormName())
		}

		if ct := part.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("Expected part content type audio/wav, got %q", ct)
		}

		data, _ := io.ReadAll(part)
		if gotAudio != nil {
			*gotAudio = data
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprint(w, line, "\n")
			flusher.Flush()
		}
	}
}

func TestTranscribeStreamsPartials(t *testing.T) {
	lines := []string{
		`data: {"text": "[{\"Start\":0,"}`,
		`data: {"text": "\"End\":1.2,\"Content\":\"Hello\"}]"}`,
		`event: done`,
		`data: {"text": "after done, ignored"}`,
	}

	var gotAudio []byte
	var gotAuth string
	server := httptest.NewServer(sseHandler(t, lines, &gotAudio, &gotAuth))
	defer server.Close()

	client := newTestClient(t, server.URL)

	payload := []byte("RIFF-payload-stand-in")
	var partials []string

	tr, err := client.Transcribe(context.Background(), bytes.NewReader(payload), func(text string) {
		partials = append(partials, text)
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Expected bearer credential, got %q", gotAuth)
	}

	if !bytes.Equal(gotAudio, payload) {
		t.Errorf("Uploaded payload mismatch: got %d bytes, want %d", len(gotAudio), len(payload))
	}

	if len(partials) != 2 {
		t.Fatalf("Expected 2 partial callbacks, got %d", len(partials))
	}

	// Partials accumulate in stream order.
	if !strings.HasPrefix(partials[1], partials[0]) {
		t.Errorf("Second partial should extend the first: %q then %q", partials[0], partials[1])
	}

	if tr.Text != "Hello" {
		t.Errorf("Expected final text %q, got %q", "Hello", tr.Text)
	}

	if len(tr.Segments) != 1 || tr.Segments[0].End != 1.2 {
		t.Errorf("Unexpected segments: %+v", tr.Segments)
	}
}

func TestTranscribeSilence(t *testing.T) {
	lines := []string{
		`data: {"text": "[]"}`,
		`event: done`,
	}

	server := httptest.NewServer(sseHandler(t, lines, nil, nil))
	defer server.Close()

	client := newTestClient(t, server.URL)

	tr, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil)
	if err != nil {
		t.Fatalf("Silence should be a successful result, got error: %v", err)
	}

	if tr.Text != "" || len(tr.Segments) != 0 {
		t.Errorf("Expected empty transcript, got %+v", tr)
	}
}

func TestTranscribeSkipsMalformedDataLines(t *testing.T) {
	lines := []string{
		`data: {broken json`,
		`: comment line, ignored`,
		`data: {"text": "[{\"Start\":0,\"End\":1,\"Content\":\"ok\"}]"}`,
		`event: done`,
	}

	server := httptest.NewServer(sseHandler(t, lines, nil, nil))
	defer server.Close()

	client := newTestClient(t, server.URL)

	tr, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if tr.Text != "ok" {
		t.Errorf("Expected %q after skipping malformed line, got %q", "ok", tr.Text)
	}
}

func TestTranscribeEOFWithoutDoneEvent(t *testing.T) {
	lines := []string{
		`data: {"text": "[{\"Start\":0,\"End\":1,\"Content\":\"cut\"}]"}`,
	}

	server := httptest.NewServer(sseHandler(t, lines, nil, nil))
	defer server.Close()

	client := newTestClient(t, server.URL)

	tr, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil)
	if err != nil {
		t.Fatalf("EOF should terminate the stream cleanly, got: %v", err)
	}

	if tr.Text != "cut" {
		t.Errorf("Expected %q, got %q", "cut", tr.Text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil)

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *ServerError, got %T: %v", err, err)
	}

	if serverErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", serverErr.Status)
	}

	if !strings.Contains(serverErr.Body, "model not loaded") {
		t.Errorf("Expected diagnostic body, got %q", serverErr.Body)
	}
}

func TestTranscribeTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL)

	_, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected *TransportError, got %T: %v", err, err)
	}
}

func TestTranscribeStats(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{"event: done"}, nil, nil))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if _, err := client.Transcribe(context.Background(), strings.NewReader("wav"), nil); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if stats.SuccessRate != 100 {
		t.Errorf("Expected 100%% success rate, got %f", stats.SuccessRate)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if !client.HealthCheck(context.Background()) {
		t.Error("Expected healthy")
	}

	down := newTestClient(t, "http://127.0.0.1:1")
	if down.HealthCheck(context.Background()) {
		t.Error("Expected unhealthy for unreachable server")
	}
}

func TestHealthCheckNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if client.HealthCheck(context.Background()) {
		t.Error("Non-200 liveness response should be unhealthy")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{AuthToken: "x"}, nil, testLogger()); err == nil {
		t.Error("NewClient should reject an empty base URL")
	}
}

func TestConfigIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"both set", Config{BaseURL: "https://asr.local", AuthToken: "tok"}, true},
		{"missing token", Config{BaseURL: "https://asr.local"}, false},
		{"missing url", Config{AuthToken: "tok"}, false},
		{"blank token", Config{BaseURL: "https://asr.local", AuthToken: "  "}, false},
		{"neither", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured = %v, want %v", got, tt.want)
			}
		})
	}
}
