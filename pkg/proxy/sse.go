package proxy

import (
	"net/http"
	"time"
)

// sseWriter defers the streaming response headers until the first byte is
// written. Errors raised before any event can then still be returned as a
// JSON error response, while errors after the first event are surfaced
// inside the stream.
type sseWriter struct {
	w http.ResponseWriter

	wrote      bool
	firstWrite time.Time
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w}
}

// Write flushes the SSE headers on first use, then forwards.
func (s *sseWriter) Write(b []byte) (int, error) {
	if !s.wrote {
		s.wrote = true
		s.firstWrite = time.Now()
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache, no-transform")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(b)
}

// Flush forwards to the underlying writer.
func (s *sseWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Started reports whether any response byte has been written.
func (s *sseWriter) Started() bool { return s.wrote }
