package audio

import (
	"math"
	"testing"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
		epsilon float64
	}{
		{"empty chunk", nil, 0, 0},
		{"silence", make([]int16, 512), 0, 0},
		{"full scale", []int16{math.MaxInt16, math.MaxInt16, math.MaxInt16}, 1.0, 0.001},
		{"half scale", []int16{16384, -16384, 16384, -16384}, 0.5, 0.001},
		{"negative full scale clamps", []int16{math.MinInt16, math.MinInt16}, 1.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Level(tt.samples)

			if math.Abs(got-tt.want) > tt.epsilon {
				t.Errorf("Level = %f, want %f", got, tt.want)
			}

			if got < 0 || got > 1 {
				t.Errorf("Level %f outside [0, 1]", got)
			}
		})
	}
}

func TestDecodeSamples(t *testing.T) {
	pcm := []byte{0x64, 0x00, 0x38, 0xFF} // 100, -200
	samples := DecodeSamples(pcm)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	if samples[0] != 100 || samples[1] != -200 {
		t.Errorf("Expected [100 -200], got %v", samples)
	}

	// Odd trailing byte is dropped.
	if got := DecodeSamples([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Errorf("Expected 1 sample from 3 bytes, got %d", len(got))
	}
}

func TestMeterKeepsFixedDepth(t *testing.T) {
	m := NewMeter(4, 1.0)

	for i := 0; i < 10; i++ {
		m.Push(float64(i) / 10)
	}

	recent := m.Recent()
	if len(recent) != 4 {
		t.Fatalf("Expected 4 retained levels, got %d", len(recent))
	}

	// Oldest first: the last four pushes were 0.6..0.9.
	for i, want := range []float64{0.6, 0.7, 0.8, 0.9} {
		if math.Abs(recent[i]-want) > 0.001 {
			t.Errorf("recent[%d] = %f, want %f", i, recent[i], want)
		}
	}

	if m.Chunks() != 10 {
		t.Errorf("Expected 10 chunks, got %d", m.Chunks())
	}
}

func TestMeterSmoothing(t *testing.T) {
	m := NewMeter(24, 0.5)

	m.Push(1.0)
	if got := m.Current(); math.Abs(got-0.5) > 0.001 {
		t.Errorf("After one push, smoothed = %f, want 0.5", got)
	}

	m.Push(1.0)
	if got := m.Current(); math.Abs(got-0.75) > 0.001 {
		t.Errorf("After two pushes, smoothed = %f, want 0.75", got)
	}
}

func TestMeterReset(t *testing.T) {
	m := NewMeter(8, 1.0)
	m.Push(0.9)
	m.Reset()

	if m.Current() != 0 {
		t.Errorf("Current after reset = %f, want 0", m.Current())
	}

	if len(m.Recent()) != 0 {
		t.Errorf("Recent after reset should be empty, got %d entries", len(m.Recent()))
	}

	if m.Chunks() != 0 {
		t.Errorf("Chunks after reset = %d, want 0", m.Chunks())
	}
}
