package events

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// StreamWriter writes frames in event-stream format:
//
//	event: <name>
//	data: <json>
//
// It flushes after every frame when the writer supports it.
type StreamWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamWriter wraps w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Send writes one frame.
func (s *StreamWriter) Send(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// PrepareHTTP sets the streaming response headers and commits the status.
func PrepareHTTP(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Frame is a recorded frame.
type Frame struct {
	Name string
	Data []byte
}

// Recorder is a FrameSender that keeps every frame in memory.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

// Send records a frame.
func (r *Recorder) Send(name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Name: name, Data: append([]byte(nil), data...)})
	return nil
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Names returns the recorded frame names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.frames))
	for i, f := range r.frames {
		names[i] = f.Name
	}
	return names
}
