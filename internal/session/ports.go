package session

import (
	"context"
	"io"

	"github.com/voxtype/voxtype/internal/transcription"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Recorder captures one utterance at a time into a WAV container at the
// given path. Stop blocks until the container is finalized.
type Recorder interface {
	Start(path string, onLevel func(float64)) error
	Stop() (string, error)
}

// Transcriber uploads a finished container and returns the transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, onPartial func(string)) (*transcription.Transcript, error)
}

// Permissions is the capture permission oracle. Granting is interactive
// and asynchronous from the controller's point of view; the controller
// re-checks after RequestCapture returns.
type Permissions interface {
	HasCapture() bool
	RequestCapture()
}

// CommitSink inserts the final transcript into the active input target.
// Fire and forget.
type CommitSink interface {
	Commit(text string)
}

// Notifier shows a best-effort, non-blocking, user-visible message.
type Notifier interface {
	Notify(message string)
}

// Overlay is the visual feedback collaborator. Attach is called when a
// session starts and Detach on every terminating transition.
type Overlay interface {
	Attach()
	SetState(state State)
	UpdateLevel(level float64)
	Detach()
}

// nopOverlay keeps the controller usable without a UI.
type nopOverlay struct{}

func (nopOverlay) Attach()             {}
func (nopOverlay) SetState(State)      {}
func (nopOverlay) UpdateLevel(float64) {}
func (nopOverlay) Detach()             {}
