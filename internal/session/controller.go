package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxtype/voxtype/internal/capture"
	"github.com/voxtype/voxtype/internal/metrics"
	"github.com/voxtype/voxtype/internal/transcription"
)

// User-facing messages for terminal error paths. Exactly one is shown per
// failed session; success commits silently.
const (
	msgNotConfigured      = "Dictation is not configured: set the server URL and auth token first."
	msgPermissionDenied   = "Microphone access is not granted."
	msgCaptureUnavailable = "Could not start recording: the microphone is busy or unavailable."
	msgServerUnreachable  = "Could not reach the transcription server."
	msgServerFailed       = "The transcription server reported an error."
	msgTranscribeFailed   = "Transcription failed."
	msgTimedOut           = "Transcription timed out."
)

// Config contains session controller configuration.
type Config struct {
	ClientConfig      transcription.Config // checked for completeness before starting
	TranscribeTimeout time.Duration        // fixed per-session deadline, no retries
	ScratchDir        string               // where utterance containers are written
}

// Controller is the session state machine. It owns one recorder and one
// transcription client and guarantees at most one logically current
// session: results arriving under a stale generation are discarded
// unconditionally. All transitions are serialized on one mutex; Start,
// Stop, and Cancel return promptly, with blocking work on the capture and
// upload goroutines.
type Controller struct {
	config      Config
	recorder    Recorder
	transcriber Transcriber
	permissions Permissions
	sink        CommitSink
	notifier    Notifier
	overlay     Overlay
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu          sync.Mutex
	state       State
	generation  uint64
	container   string
	timer       *time.Timer
	recordStart time.Time

	// Session counters for the status API.
	sessionsStarted   uint64
	sessionsCommitted uint64
	sessionsCancelled uint64
	sessionsTimedOut  uint64
	sessionsFailed    uint64
}

// Deps bundles the controller's collaborators.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Permissions Permissions
	Sink        CommitSink
	Notifier    Notifier
	Overlay     Overlay // optional
	Metrics     *metrics.Metrics
}

// NewController creates a controller in the idle state.
func NewController(config Config, deps Deps, logger *slog.Logger) (*Controller, error) {
	if deps.Recorder == nil || deps.Transcriber == nil {
		return nil, fmt.Errorf("recorder and transcriber are required")
	}

	if deps.Permissions == nil || deps.Sink == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("permissions, sink, and notifier are required")
	}

	if deps.Overlay == nil {
		deps.Overlay = nopOverlay{}
	}

	if config.TranscribeTimeout <= 0 {
		config.TranscribeTimeout = 65 * time.Second
	}

	if config.ScratchDir == "" {
		config.ScratchDir = os.TempDir()
	}

	return &Controller{
		config:      config,
		recorder:    deps.Recorder,
		transcriber: deps.Transcriber,
		permissions: deps.Permissions,
		sink:        deps.Sink,
		notifier:    deps.Notifier,
		overlay:     deps.Overlay,
		logger:      logger,
		metrics:     deps.Metrics,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a new recording session. It is a no-op with a warning
// outside the idle state. Configuration and permission failures are
// surfaced once through the notifier and leave the controller idle.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.logger.Warn("Start ignored outside idle state", slog.String("state", c.state.String()))
		return
	}

	if !c.config.ClientConfig.IsConfigured() {
		c.notifier.Notify(msgNotConfigured)
		return
	}

	if !c.permissions.HasCapture() {
		// Granting happens in an external UI flow; re-check on return.
		c.permissions.RequestCapture()
		if !c.permissions.HasCapture() {
			c.notifier.Notify(msgPermissionDenied)
			return
		}
	}

	path := filepath.Join(c.config.ScratchDir, fmt.Sprintf("utterance-%s.wav", uuid.NewString()))

	onLevel := func(level float64) {
		c.metrics.RecordCaptureChunk()
		c.overlay.UpdateLevel(level)
	}

	if err := c.recorder.Start(path, onLevel); err != nil {
		c.logger.Error("Failed to start capture", slog.String("error", err.Error()))

		if errors.Is(err, capture.ErrCaptureBusy) || errors.Is(err, capture.ErrCaptureUnavailable) {
			c.notifier.Notify(msgCaptureUnavailable)
		} else {
			c.notifier.Notify(msgTranscribeFailed)
		}
		return
	}

	c.generation++
	c.state = StateRecording
	c.container = path
	c.recordStart = time.Now()
	c.sessionsStarted++
	c.metrics.RecordSessionStarted()

	c.overlay.Attach()
	c.overlay.SetState(StateRecording)

	c.logger.Info("Recording started",
		slog.Uint64("generation", c.generation),
		slog.String("container", path),
	)
}

// Stop ends capture and dispatches the upload. It is a no-op outside the
// recording state. The transcription deadline is armed here with the
// generation captured at dispatch time.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return
	}

	path, err := c.recorder.Stop()
	if err != nil {
		c.logger.Error("Failed to finalize capture", slog.String("error", err.Error()))
		c.removeContainerLocked()
		c.finishLocked()
		c.notifier.Notify(msgTranscribeFailed)
		return
	}
	c.container = path
	c.metrics.RecordCaptureDuration(time.Since(c.recordStart).Seconds())

	c.state = StateTranscribing
	c.overlay.SetState(StateTranscribing)

	gen := c.generation
	c.timer = time.AfterFunc(c.config.TranscribeTimeout, func() {
		c.onTimeout(gen)
	})

	c.logger.Info("Transcription dispatched",
		slog.Uint64("generation", gen),
		slog.Duration("timeout", c.config.TranscribeTimeout),
	)

	// Upload and SSE parsing run off the caller's thread; the result
	// re-enters through onComplete stamped with this generation.
	go c.transcribe(gen, path)
}

// Cancel aborts the current session, whatever its state. Any pending
// container is deleted and the generation is incremented so every
// in-flight completion or timeout becomes a no-op. Cancellation is silent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return
	}

	if c.state == StateRecording {
		if _, err := c.recorder.Stop(); err != nil {
			c.logger.Warn("Error stopping capture on cancel", slog.String("error", err.Error()))
		}
	}

	c.logger.Info("Session cancelled",
		slog.Uint64("generation", c.generation),
		slog.String("state", c.state.String()),
	)

	c.removeContainerLocked()
	c.generation++
	c.sessionsCancelled++
	c.metrics.RecordSessionCancelled()
	c.finishLocked()
}

// transcribe runs on the upload goroutine: it streams the container to the
// server and delivers the outcome, stamped with the dispatch generation.
// The container is deleted after the one upload attempt, success or not.
func (c *Controller) transcribe(gen uint64, path string) {
	start := time.Now()
	c.metrics.RecordTranscriptionRequest()

	file, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		c.onComplete(gen, nil, fmt.Errorf("failed to open container: %w", err))
		return
	}

	onPartial := func(text string) {
		c.logger.Debug("Partial transcript",
			slog.Uint64("generation", gen),
			slog.Int("accumulated_bytes", len(text)),
		)
	}

	transcript, err := c.transcriber.Transcribe(context.Background(), file, onPartial)

	file.Close()
	os.Remove(path)

	if err != nil {
		c.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
	} else {
		c.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
	}

	c.onComplete(gen, transcript, err)
}

// onComplete consumes the upload result on the controller's lock. A
// generation mismatch means the session was cancelled or replaced while
// the network call was in flight: the result is discarded with no
// observable side effects.
func (c *Controller) onComplete(gen uint64, transcript *transcription.Transcript, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("Discarding stale transcription result",
			slog.Uint64("result_generation", gen),
			slog.Uint64("current_generation", c.generation),
		)
		return
	}

	if c.state != StateTranscribing {
		return
	}

	var notice string

	switch {
	case err != nil:
		c.sessionsFailed++
		notice = noticeForError(err)
		c.logger.Error("Transcription failed",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)

	case transcript.Empty():
		c.logger.Info("Transcription returned no speech", slog.Uint64("generation", gen))

	default:
		c.sessionsCommitted++
		c.metrics.RecordCommit(len(transcript.Text))
		c.sink.Commit(transcript.Text)
		c.logger.Info("Transcript committed",
			slog.Uint64("generation", gen),
			slog.Int("characters", len(transcript.Text)),
			slog.Int("segments", len(transcript.Segments)),
		)
	}

	c.finishLocked()

	if notice != "" {
		c.notifier.Notify(notice)
	}
}

// onTimeout fires on the timer goroutine. It only acts if its generation
// is still current and the session is still waiting on the server; a
// single firing is terminal for that session.
func (c *Controller) onTimeout(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != StateTranscribing {
		return
	}

	c.logger.Warn("Transcription deadline exceeded",
		slog.Uint64("generation", gen),
		slog.Duration("timeout", c.config.TranscribeTimeout),
	)

	c.removeContainerLocked()
	c.generation++
	c.sessionsTimedOut++
	c.metrics.RecordSessionTimedOut()
	c.finishLocked()

	c.notifier.Notify(msgTimedOut)
}

// finishLocked performs the common terminating transition: timer disarmed,
// idle state, overlay detached. Callers hold the lock.
func (c *Controller) finishLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.state = StateIdle
	c.container = ""
	c.overlay.Detach()
}

// removeContainerLocked deletes any pending scratch container.
func (c *Controller) removeContainerLocked() {
	if c.container == "" {
		return
	}

	if err := os.Remove(c.container); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove scratch container",
			slog.String("path", c.container),
			slog.String("error", err.Error()),
		)
	}
	c.container = ""
}

// noticeForError maps a completion error to the user-facing message,
// distinguishing an unreachable server from a server-side failure.
func noticeForError(err error) string {
	var transportErr *transcription.TransportError
	if errors.As(err, &transportErr) {
		return msgServerUnreachable
	}

	var serverErr *transcription.ServerError
	if errors.As(err, &serverErr) {
		return fmt.Sprintf("%s (HTTP %d)", msgServerFailed, serverErr.Status)
	}

	return msgTranscribeFailed
}

// Stats is a snapshot of session counters for the status API.
type Stats struct {
	State             string `json:"state"`
	Generation        uint64 `json:"generation"`
	SessionsStarted   uint64 `json:"sessions_started"`
	SessionsCommitted uint64 `json:"sessions_committed"`
	SessionsCancelled uint64 `json:"sessions_cancelled"`
	SessionsTimedOut  uint64 `json:"sessions_timed_out"`
	SessionsFailed    uint64 `json:"sessions_failed"`
}

// GetStats returns current session statistics.
func (c *Controller) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		State:             c.state.String(),
		Generation:        c.generation,
		SessionsStarted:   c.sessionsStarted,
		SessionsCommitted: c.sessionsCommitted,
		SessionsCancelled: c.sessionsCancelled,
		SessionsTimedOut:  c.sessionsTimedOut,
		SessionsFailed:    c.sessionsFailed,
	}
}
