// Package capture owns the microphone and records one utterance at a time
// into a WAV container on disk. A single drain goroutine consumes device
// chunks, appends them to the container, and reports per-chunk amplitude.
package capture
