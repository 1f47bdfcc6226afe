package transcription

import "fmt"

// TransportError indicates the request failed before a response was
// obtained: DNS, connect, or timeout failures. Callers present different
// user guidance for an unreachable server than for a server-side failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transcription transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError indicates the server answered with a non-2xx status.
// Body carries a best-effort excerpt of the response for diagnostics.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription server error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("transcription server error: HTTP %d: %s", e.Status, e.Body)
}
