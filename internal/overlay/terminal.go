package overlay

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/session"
)

const meterWidth = 20

// Terminal renders a single status line on the given writer, normally
// stderr so committed text on stdout stays clean. The line is redrawn
// in place with a carriage return and cleared on Detach.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	visible bool
	state   session.State
	meter   *audio.Meter

	recordingStyle lipgloss.Style
	busyStyle      lipgloss.Style
	meterStyle     lipgloss.Style
	dimStyle       lipgloss.Style
}

// NewTerminal creates a terminal overlay writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:            out,
		meter:          audio.NewMeter(meterWidth, 0.4),
		recordingStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f5f")),
		busyStyle:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f0c674")),
		meterStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f")),
		dimStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
}

// Attach makes the overlay visible.
func (t *Terminal) Attach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.visible = true
	t.meter.Reset()
	t.renderLocked()
}

// SetState updates the displayed session state.
func (t *Terminal) SetState(state session.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
	t.renderLocked()
}

// UpdateLevel feeds one chunk level into the amplitude meter. The
// displayed bar uses the meter's smoothed value so it does not flicker
// at the chunk rate.
func (t *Terminal) UpdateLevel(level float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.meter.Push(level)
	t.renderLocked()
}

// Detach clears the status line and hides the overlay.
func (t *Terminal) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.visible {
		return
	}

	t.visible = false
	fmt.Fprint(t.out, "\r\033[K")
}

func (t *Terminal) renderLocked() {
	if !t.visible {
		return
	}

	var line string
	switch t.state {
	case session.StateRecording:
		line = t.recordingStyle.Render("● REC") + " " + t.renderMeter()
	case session.StateTranscribing:
		line = t.busyStyle.Render("transcribing...") + " " + t.dimStyle.Render("(c to cancel)")
	default:
		line = t.dimStyle.Render("idle")
	}

	fmt.Fprint(t.out, "\r\033[K"+line)
}

func (t *Terminal) renderMeter() string {
	level := t.meter.Current()
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	filled := int(level * meterWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	return t.meterStyle.Render(bar)
}
