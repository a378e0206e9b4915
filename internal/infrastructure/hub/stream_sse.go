package hub

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

// SSEStream writes frames to a text/event-stream HTTP response.
type SSEStream struct {
	w            http.ResponseWriter
	flusher      http.Flusher
	rc           *http.ResponseController
	writeTimeout time.Duration
}

var _ Stream = (*SSEStream)(nil)

// NewSSEStream fails with ErrStreamingUnsupported if w cannot flush.
func NewSSEStream(w http.ResponseWriter, writeTimeout time.Duration) (*SSEStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSEStream{
		w:            w,
		flusher:      flusher,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}, nil
}

// Open sends the streaming response headers followed by hello, and flushes.
// It must be called before the connection is attached to the hub.
func (s *SSEStream) Open(hello sse.Event) error {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
	s.w.WriteHeader(http.StatusOK)

	if err := s.setDeadline(); err != nil {
		return err
	}
	if err := sse.Encode(s.w, hello); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEStream) WriteFrame(f Frame) error {
	if err := s.setDeadline(); err != nil {
		return err
	}
	if _, err := s.w.Write(EncodeSSE(f)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close is a no-op: the response ends when the handler returns.
func (s *SSEStream) Close() error {
	return nil
}

// setDeadline bounds the next write. Writers without deadline support rely on
// the connection's queue bound and stall detection instead.
func (s *SSEStream) setDeadline() error {
	if s.writeTimeout <= 0 {
		return nil
	}
	err := s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
