package hub

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-event-hub/internal/infrastructure/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string)                              {}
func (m *mockLogger) Debugf(format string, args ...any)             {}
func (m *mockLogger) Info(msg string)                               {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(msg string)                               {}
func (m *mockLogger) Warnf(format string, args ...any)              {}
func (m *mockLogger) Error(msg string)                              {}
func (m *mockLogger) Errorf(format string, args ...any)             {}
func (m *mockLogger) Fatal(msg string)                              {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) WithField(key string, value any) logger.Logger { return m }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger { return m }
func (m *mockLogger) SetLevel(level logger.Level)                   {}
func (m *mockLogger) SetOutput(output io.Writer)                    {}

// fakeStream records frames. A non-nil gate makes every write block until the
// gate is closed; a non-nil failErr makes every write fail.
type fakeStream struct {
	gate    chan struct{}
	failErr error

	mu     sync.Mutex
	frames []Frame
	writes int
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{}
}

func (s *fakeStream) WriteFrame(f Frame) error {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	if s.failErr != nil {
		return s.failErr
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, f := range s.frames {
		if !f.IsHeartbeat() {
			out = append(out, f.Event())
		}
	}
	return out
}

func (s *fakeStream) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, f := range s.frames {
		if f.IsHeartbeat() {
			n++
		}
	}
	return n
}

func (s *fakeStream) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()

	h := New(&mockLogger{}, opts...)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return h
}

func attach(t *testing.T, h *Hub, topics TopicSet, stream Stream) *Connection {
	t.Helper()

	conn := h.NewConnection("test", topics, stream)
	require.NoError(t, h.Attach(conn))
	return conn
}

func newActiveConnection(t *testing.T, id string, topics TopicSet) (*Connection, *fakeStream) {
	t.Helper()

	stream := newFakeStream()
	conn := NewConnection(id, "test", topics, stream, &mockLogger{})
	require.NoError(t, conn.activate())
	t.Cleanup(func() { conn.Close(nil) })
	return conn, stream
}

func waitClosed(t *testing.T, conn *Connection) {
	t.Helper()

	select {
	case <-conn.Closed():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection %s did not reach the closed state", conn.ID())
	}
}
