// Package transcription provides the HTTP client for the remote ASR service.
// It streams a WAV container as a multipart upload, consumes the server-sent
// event response incrementally, and assembles the final segment transcript.
package transcription
