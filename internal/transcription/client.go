package transcription

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	transcribePath = "/v1/transcribe"
	healthPath     = "/health"

	// maxErrorBody caps the diagnostic excerpt read from error responses.
	maxErrorBody = 4 << 10

	// maxLineSize bounds a single SSE line.
	maxLineSize = 1 << 20
)

// Client performs transcription uploads against the ASR server. One HTTPS
// connection is opened per Transcribe call and released on every exit path.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration.
type Config struct {
	BaseURL       string        // server base URL, e.g. https://asr.example.com:8443
	AuthToken     string        // static bearer credential
	Timeout       time.Duration // per-call bound covering upload and stream read
	HealthTimeout time.Duration // bound for HealthCheck
}

// IsConfigured is true iff both the base URL and the auth token are
// non-blank. The controller surfaces a setup message instead of attempting
// a request when this is false.
func (c Config) IsConfigured() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.AuthToken) != ""
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a transcription client. The caller's http.Transport
// policy (certificate trust included) can be supplied via transport; nil
// uses the default.
func NewClient(config Config, transport http.RoundTripper, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 65 * time.Second
	}

	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 3 * time.Second
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		logger: logger,
	}, nil
}

// sseEvent is the JSON payload carried by one "data:" line.
type sseEvent struct {
	Text string `json:"text"`
}

// Transcribe uploads one finished WAV container and consumes the SSE
// response. onPartial, if non-nil, receives the accumulated text after
// every data line, in stream order. The returned error is a *TransportError
// for connection-level failures and a *ServerError for non-2xx responses;
// an unparseable or empty final payload is a successful empty transcript,
// not an error.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, onPartial func(string)) (*Transcript, error) {
	start := time.Now()
	c.incrementTotalRequests()

	transcript, err := c.doTranscribe(ctx, audio, onPartial)
	if err != nil {
		c.incrementFailedRequests()
		return nil, err
	}

	c.recordSuccess(time.Since(start))
	return transcript, nil
}

func (c *Client) doTranscribe(ctx context.Context, audio io.Reader, onPartial func(string)) (*Transcript, error) {
	body, contentType := multipartBody(audio)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+transcribePath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Best-effort diagnostics; an unreadable body still yields the status.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	accumulated, err := c.readEventStream(resp.Body, onPartial)
	if err != nil {
		return nil, err
	}

	return ParseTranscript(accumulated), nil
}

// multipartBody streams the container through a pipe as a single
// multipart/form-data part named "audio". Chunked transfer keeps memory
// bounded by the I/O buffer, not the container size.
func multipartBody(audio io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="audio"; filename="utterance.wav"`)
		header.Set("Content-Type", "audio/wav")

		part, err := writer.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, audio)
		}
		if err == nil {
			err = writer.Close()
		}

		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType()
}

// readEventStream consumes the line-oriented SSE body. "data:" lines carry
// a JSON object whose text field is appended to the accumulator; a
// malformed data line is logged and skipped; "event: done" or EOF ends the
// stream; every other line is ignored. The body is a single-use, finite
// sequence: one response is consumed exactly once.
func (c *Client) readEventStream(body io.Reader, onPartial func(string)) (string, error) {
	var accumulator strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "event: done" {
			break
		}

		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var event sseEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			c.logger.Warn("Skipping malformed event line",
				slog.String("error", err.Error()),
				slog.Int("line_bytes", len(payload)),
			)
			continue
		}

		accumulator.WriteString(event.Text)

		if onPartial != nil {
			onPartial(accumulator.String())
		}
	}

	if err := scanner.Err(); err != nil {
		return "", &TransportError{Err: fmt.Errorf("reading event stream: %w", err)}
	}

	return accumulator.String(), nil
}

// HealthCheck probes the server's liveness endpoint with a short timeout.
// Every failure mode collapses to false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+healthPath, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	return resp.StatusCode == http.StatusOK
}

// Statistics methods

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) recordSuccess(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successRequests++

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}
