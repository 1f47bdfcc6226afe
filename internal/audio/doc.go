// Package audio handles the WAV audio container and amplitude metering.
// It implements a streaming two-pass WAV writer for PCM-16 mono capture,
// one-shot encode/decode helpers, and RMS level computation for UI feedback.
package audio
