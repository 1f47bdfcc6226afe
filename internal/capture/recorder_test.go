package capture

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voxtype/voxtype/internal/audio"
)

// fakeDevice is an in-memory Device that delivers chunks on demand.
type fakeDevice struct {
	mu       sync.Mutex
	onData   func([]byte)
	startErr error
	started  bool
}

func (d *fakeDevice) Start(onData func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.startErr != nil {
		return d.startErr
	}

	d.onData = onData
	d.started = true
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onData = nil
	d.started = false
	return nil
}

func (d *fakeDevice) emitSamples(samples []int16) {
	d.mu.Lock()
	onData := d.onData
	d.mu.Unlock()

	if onData == nil {
		return
	}

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	onData(pcm)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRecorderRoundTrip(t *testing.T) {
	device := &fakeDevice{}
	recorder := NewRecorder(Config{SampleRate: 16000}, device, testLogger())
	path := filepath.Join(t.TempDir(), "utterance.wav")

	var levelsMu sync.Mutex
	var levels []float64

	err := recorder.Start(path, func(level float64) {
		levelsMu.Lock()
		levels = append(levels, level)
		levelsMu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !recorder.Active() {
		t.Error("Recorder should be active after Start")
	}

	// Three chunks: silence, half scale, silence.
	device.emitSamples(make([]int16, 160))
	device.emitSamples([]int16{16384, -16384, 16384, -16384})
	device.emitSamples(make([]int16, 160))

	got, err := recorder.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got != path {
		t.Errorf("Stop returned path %q, want %q", got, path)
	}

	if recorder.Active() {
		t.Error("Recorder should be inactive after Stop")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read container: %v", err)
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("Container is not valid WAV: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	wantSamples := 160 + 4 + 160
	if len(samples) != wantSamples {
		t.Errorf("Expected %d samples, got %d", wantSamples, len(samples))
	}

	declared := binary.LittleEndian.Uint32(data[40:44])
	if int(declared) != len(data)-44 {
		t.Errorf("Declared data length %d != actual payload %d", declared, len(data)-44)
	}

	levelsMu.Lock()
	defer levelsMu.Unlock()

	if len(levels) != 3 {
		t.Fatalf("Expected 3 level callbacks, got %d", len(levels))
	}

	if levels[0] != 0 || levels[2] != 0 {
		t.Errorf("Silent chunks should report level 0, got %f and %f", levels[0], levels[2])
	}

	if math.Abs(levels[1]-0.5) > 0.001 {
		t.Errorf("Half-scale chunk should report level 0.5, got %f", levels[1])
	}
}

func TestRecorderSecondStartFailsFast(t *testing.T) {
	device := &fakeDevice{}
	recorder := NewRecorder(Config{SampleRate: 16000}, device, testLogger())
	dir := t.TempDir()

	if err := recorder.Start(filepath.Join(dir, "a.wav"), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := recorder.Start(filepath.Join(dir, "b.wav"), nil)
	if !errors.Is(err, ErrCaptureBusy) {
		t.Errorf("Expected ErrCaptureBusy, got %v", err)
	}

	if _, err := recorder.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestRecorderDeviceUnavailable(t *testing.T) {
	device := &fakeDevice{startErr: errors.New("no hardware")}
	recorder := NewRecorder(Config{SampleRate: 16000}, device, testLogger())
	path := filepath.Join(t.TempDir(), "utterance.wav")

	err := recorder.Start(path, nil)
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("Expected ErrCaptureUnavailable, got %v", err)
	}

	if recorder.Active() {
		t.Error("Recorder should not be active after failed Start")
	}

	// The scratch file is cleaned up on a failed start.
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Scratch file should be removed after failed Start")
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	recorder := NewRecorder(Config{SampleRate: 16000}, &fakeDevice{}, testLogger())

	if _, err := recorder.Stop(); err == nil {
		t.Error("Stop without Start should fail")
	}
}

func TestRecorderEmptyUtterance(t *testing.T) {
	device := &fakeDevice{}
	recorder := NewRecorder(Config{SampleRate: 16000}, device, testLogger())
	path := filepath.Join(t.TempDir(), "empty.wav")

	if err := recorder.Start(path, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := recorder.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read container: %v", err)
	}

	if len(data) != 44 {
		t.Errorf("Empty utterance should produce a bare 44-byte header, got %d bytes", len(data))
	}

	if err := audio.ValidateWAV(data); err != nil {
		t.Errorf("Empty container should still be valid: %v", err)
	}
}
