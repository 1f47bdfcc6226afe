package audio

import (
	"math"
	"sync"
)

// Level computes the normalized loudness of one chunk of PCM-16 samples:
// root-mean-square of the signed samples divided by the maximum
// representable magnitude, clamped to [0.0, 1.0]. An empty chunk is silent.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}

	level := math.Sqrt(sum/float64(len(samples))) / float64(math.MaxInt16)
	if level > 1 {
		level = 1
	}

	return level
}

// DecodeSamples reinterprets raw little-endian PCM-16 bytes as samples.
// A trailing odd byte is dropped.
func DecodeSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return samples
}

// Meter tracks a smoothed amplitude level and a fixed-depth history of
// recent chunk levels for display. Safe for concurrent use: the capture
// loop pushes, the UI reads.
type Meter struct {
	smoothing float64
	depth     int

	smoothed float64
	recent   []float64
	chunks   uint64

	mu sync.RWMutex
}

// NewMeter creates a meter keeping the last depth chunk levels.
// Smoothing is an exponential factor in (0, 1]; 1 disables smoothing.
func NewMeter(depth int, smoothing float64) *Meter {
	if depth <= 0 {
		depth = 24
	}
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 0.4
	}

	return &Meter{
		smoothing: smoothing,
		depth:     depth,
		recent:    make([]float64, 0, depth),
	}
}

// Push records the level of one chunk and returns the smoothed value.
func (m *Meter) Push(level float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks++
	m.smoothed = m.smoothed*(1-m.smoothing) + level*m.smoothing

	if len(m.recent) == m.depth {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:m.depth-1]
	}
	m.recent = append(m.recent, level)

	return m.smoothed
}

// Current returns the smoothed level.
func (m *Meter) Current() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smoothed
}

// Recent returns a copy of the retained chunk levels, oldest first.
func (m *Meter) Recent() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float64, len(m.recent))
	copy(out, m.recent)
	return out
}

// Reset clears the meter between sessions.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.smoothed = 0
	m.recent = m.recent[:0]
	m.chunks = 0
}

// Chunks returns the number of chunks pushed since the last reset.
func (m *Meter) Chunks() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks
}
