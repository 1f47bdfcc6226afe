// Package metrics defines the Prometheus instrumentation for the dictation
// core: session lifecycle counters, capture activity, and transcription
// request timings.
package metrics
