package overlay

import (
	"bytes"
	"strings"
	"testing"

	"github.com/voxtype/voxtype/internal/session"
)

func TestRecordingLineShowsBadgeAndMeter(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Attach()
	term.SetState(session.StateRecording)
	term.UpdateLevel(1.0)

	out := buf.String()
	if !strings.Contains(out, "REC") {
		t.Errorf("Expected recording badge in output, got %q", out)
	}

	if !strings.Contains(out, "█") {
		t.Errorf("Expected a filled meter segment for a loud chunk, got %q", out)
	}
}

func TestTranscribingLine(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Attach()
	term.SetState(session.StateTranscribing)

	if !strings.Contains(buf.String(), "transcribing") {
		t.Errorf("Expected transcribing notice, got %q", buf.String())
	}
}

func TestDetachClearsLine(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Attach()
	term.SetState(session.StateRecording)
	term.Detach()

	if !strings.HasSuffix(buf.String(), "\r\033[K") {
		t.Errorf("Expected trailing clear sequence, got %q", buf.String())
	}

	before := buf.Len()
	term.UpdateLevel(0.5)
	if buf.Len() != before {
		t.Error("Detached overlay must not render")
	}
}

func TestDetachWithoutAttachIsNoop(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Detach()

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestMeterSmoothingAcrossAttach(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Attach()
	term.SetState(session.StateRecording)
	term.UpdateLevel(1.0)
	term.Detach()

	// A new session must not inherit the previous session's level.
	buf.Reset()
	term.Attach()
	term.SetState(session.StateRecording)
	term.UpdateLevel(0.0)

	if strings.Contains(buf.String(), "█") {
		t.Errorf("Expected an empty meter after reattach, got %q", buf.String())
	}
}
