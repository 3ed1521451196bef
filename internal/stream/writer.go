package stream

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Writer emits SSE frames and flushes after each one when the underlying
// writer supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent writes one event. Multi-line data is split into several data:
// lines as the SSE format requires.
func (s *Writer) WriteEvent(event string, data []byte) error {
	var buf bytes.Buffer
	if event != "" {
		fmt.Fprintf(&buf, "event: %s\n", event)
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
