// Package overlay implements the visible recording indicator. The
// terminal variant redraws one status line in place: a red REC marker
// with a live amplitude meter while recording, a spinner-style notice
// while the upload is in flight.
package overlay
