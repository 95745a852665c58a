package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// doneMarker terminates every event stream so clients can stop reading
// without waiting for the connection to close.
const doneMarker = "[DONE]"

// SSEStream writes server-sent events and flushes after each one.
type SSEStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEStream sets the event-stream headers and returns a stream writer.
// It fails if the underlying writer cannot flush incrementally.
func NewSSEStream(w http.ResponseWriter) (*SSEStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEStream{w: w, flusher: flusher}, nil
}

// Data writes one data event carrying v as JSON.
func (s *SSEStream) Data(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Event writes a named event carrying v as JSON.
func (s *SSEStream) Event(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Done writes the terminating [DONE] marker.
func (s *SSEStream) Done() error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", doneMarker); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
