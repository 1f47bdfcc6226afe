package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/voxtype/voxtype/internal/audio"
)

var (
	// ErrCaptureBusy is returned when Start is called while a capture is
	// already active. The hardware handle is exclusive; a second start is
	// a programming error, not a retryable condition.
	ErrCaptureBusy = errors.New("capture already active")

	// ErrCaptureUnavailable is returned when the audio device cannot be
	// acquired.
	ErrCaptureUnavailable = errors.New("audio device unavailable")
)

// Device is a raw PCM-16 mono audio source. Start begins delivering chunks
// of little-endian PCM bytes to onData from the device's own context and
// Stop halts delivery. Implementations must not call onData after Stop
// returns.
type Device interface {
	Start(onData func(pcm []byte)) error
	Stop() error
}

// Config contains recorder configuration.
type Config struct {
	SampleRate int // PCM sample rate, Hz
	QueueDepth int // chunk queue capacity between device and drain loop
}

// Recorder records one utterance at a time from a Device into a WAV file.
// The caller supplies the scratch path and is responsible for removing the
// file after use.
type Recorder struct {
	config Config
	device Device
	logger *slog.Logger

	mu      sync.Mutex
	active  bool
	chunks  chan []byte
	drained chan struct{}
	file    *os.File
	writer  *audio.Writer
	onLevel func(float64)
	path    string
}

// NewRecorder creates a recorder bound to the given device.
func NewRecorder(config Config, device Device, logger *slog.Logger) *Recorder {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}

	if config.QueueDepth <= 0 {
		config.QueueDepth = 32
	}

	return &Recorder{
		config: config,
		device: device,
		logger: logger,
	}
}

// Start opens the scratch WAV container at path and begins capturing.
// onLevel, if non-nil, is invoked once per device chunk with the chunk's
// normalized RMS level, in chunk order, from the drain goroutine.
// Fails with ErrCaptureBusy if a capture is already active and
// ErrCaptureUnavailable if the device cannot be started.
func (r *Recorder) Start(path string, onLevel func(float64)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrCaptureBusy
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open scratch container %s: %w", path, err)
	}

	writer, err := audio.NewWriter(file, r.config.SampleRate)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to open WAV writer: %w", err)
	}

	chunks := make(chan []byte, r.config.QueueDepth)
	drained := make(chan struct{})

	r.chunks = chunks
	r.drained = drained
	r.file = file
	r.writer = writer
	r.onLevel = onLevel
	r.path = path

	go r.drainLoop(chunks, drained)

	// The callback closes over this capture's own queue so a stale device
	// can never reach a later session's container.
	onData := func(pcm []byte) {
		if len(pcm) == 0 {
			return
		}

		// The device may reuse its buffer between callbacks.
		chunk := make([]byte, len(pcm))
		copy(chunk, pcm)
		chunks <- chunk
	}

	if err := r.device.Start(onData); err != nil {
		close(chunks)
		<-drained
		file.Close()
		os.Remove(path)
		r.reset()
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	r.active = true

	r.logger.Debug("Capture started",
		slog.String("path", path),
		slog.Int("sample_rate", r.config.SampleRate),
	)

	return nil
}

// Stop halts the device, blocks until the drain goroutine has consumed all
// queued chunks, finalizes the container header, and closes the file.
// The finalized container path is returned.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return "", fmt.Errorf("capture not active")
	}
	r.active = false

	if err := r.device.Stop(); err != nil {
		r.logger.Warn("Error stopping audio device", slog.String("error", err.Error()))
	}

	// The device delivers no chunks after Stop, so closing the queue and
	// waiting drains everything that was captured.
	close(r.chunks)
	<-r.drained

	path := r.path
	written := r.writer.BytesWritten()

	err := r.writer.Finalize()
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	r.reset()

	if err != nil {
		return "", fmt.Errorf("failed to finalize container: %w", err)
	}

	r.logger.Debug("Capture stopped",
		slog.String("path", path),
		slog.Uint64("payload_bytes", uint64(written)),
	)

	return path, nil
}

// Active reports whether a capture is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// drainLoop is the single writer of the container: it appends each chunk
// and reports its amplitude, in chunk order, until the queue is closed.
func (r *Recorder) drainLoop(chunks <-chan []byte, drained chan<- struct{}) {
	defer close(drained)

	for chunk := range chunks {
		if _, err := r.writer.Write(chunk); err != nil {
			r.logger.Error("Failed to write capture chunk", slog.String("error", err.Error()))
			continue
		}

		if r.onLevel != nil {
			r.onLevel(audio.Level(audio.DecodeSamples(chunk)))
		}
	}
}

func (r *Recorder) reset() {
	r.chunks = nil
	r.drained = nil
	r.file = nil
	r.writer = nil
	r.onLevel = nil
	r.path = ""
}
