// Package session sequences one dictation session at a time through the
// capture, upload, and transcription lifecycle. It owns the state machine,
// the transcription deadline, and the generation counter that invalidates
// results from cancelled or superseded sessions.
package session
