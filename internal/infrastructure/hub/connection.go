package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"go-event-hub/internal/infrastructure/logger"
)

// DefaultBufferSize is the number of frames a connection may have queued
// before it is treated as a slow consumer and dropped.
const DefaultBufferSize = 64

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// State is a connection's lifecycle position. Transitions only move forward.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stream is the outbound half of one client transport. It is only ever used
// from the owning connection's writer goroutine.
type Stream interface {
	WriteFrame(f Frame) error
	Close() error
}

// Connection is one subscribed client. Frames are queued with Enqueue and
// written in order by a single writer goroutine that owns the stream.
type Connection struct {
	id        string
	transport string
	topics    TopicSet
	stream    Stream
	logger    logger.Logger
	clock     clockwork.Clock

	state    atomic.Int32
	outbound chan Frame

	// done is closed when the connection starts closing, closed when the
	// writer has released the stream.
	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	errMu sync.Mutex
	err   error

	onClose func(conn *Connection, reason error)

	createdAt       time.Time
	lastWriteAt     atomic.Int64
	lastHeartbeatAt atomic.Int64
}

type ConnectionOption func(*Connection)

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) ConnectionOption {
	return func(c *Connection) {
		if n > 0 {
			c.outbound = make(chan Frame, n)
		}
	}
}

func WithConnectionClock(clock clockwork.Clock) ConnectionOption {
	return func(c *Connection) {
		c.clock = clock
	}
}

// NewConnection creates a connection in the Connecting state. It becomes
// Active once attached to a Hub.
func NewConnection(
	id string,
	transport string,
	topics TopicSet,
	stream Stream,
	log logger.Logger,
	opts ...ConnectionOption,
) *Connection {
	c := &Connection{
		id:        id,
		transport: transport,
		topics:    topics,
		stream:    stream,
		clock:     clockwork.NewRealClock(),
		outbound:  make(chan Frame, DefaultBufferSize),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = log.WithFields(logger.Fields{
		"connection_id": id,
		"transport":     transport,
	})
	c.createdAt = c.clock.Now()
	c.lastWriteAt.Store(c.createdAt.UnixNano())
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Connection) ID() string           { return c.id }
func (c *Connection) Transport() string    { return c.transport }
func (c *Connection) Topics() TopicSet     { return c.topics }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }
func (c *Connection) State() State         { return State(c.state.Load()) }

func (c *Connection) Matches(topic string) bool {
	return c.topics.Matches(topic)
}

// Pending is the number of frames queued but not yet written.
func (c *Connection) Pending() int {
	return len(c.outbound)
}

func (c *Connection) LastWriteAt() time.Time {
	return time.Unix(0, c.lastWriteAt.Load())
}

// LastHeartbeatAt is zero until the first keep-alive has been written.
func (c *Connection) LastHeartbeatAt() time.Time {
	ns := c.lastHeartbeatAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Done is closed as soon as the connection leaves the Active state.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed is closed once the writer has stopped and the stream is released.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// Err returns why the connection closed. Nil means a normal client disconnect.
func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Enqueue queues a frame without blocking. A full queue yields ErrSlowConsumer.
func (c *Connection) Enqueue(f Frame) error {
	if c.State() != StateActive {
		return ErrConnectionClosed
	}

	select {
	case c.outbound <- f:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close moves the connection to Closing and triggers cleanup. It is safe to
// call any number of times from any goroutine; only the first reason is kept.
func (c *Connection) Close(reason error) {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosing)))

		c.errMu.Lock()
		c.err = reason
		c.errMu.Unlock()

		close(c.done)

		if c.onClose != nil {
			c.onClose(c, reason)
		}

		// Without a writer goroutine nobody else will release the stream.
		if prev != StateActive {
			c.finish()
		}
	})
}

// activate moves Connecting to Active and starts the writer.
func (c *Connection) activate() error {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return fmt.Errorf("%w: %s", ErrConnectionNotActive, c.State())
	}
	go c.writeLoop()
	return nil
}

func (c *Connection) writeLoop() {
	defer c.finish()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.outbound:
			// done wins over queued frames
			select {
			case <-c.done:
				return
			default:
			}

			if err := c.write(f); err != nil {
				c.Close(fmt.Errorf("%w: %v", ErrWriteFailed, err))
				return
			}
		}
	}
}

func (c *Connection) write(f Frame) error {
	if err := c.stream.WriteFrame(f); err != nil {
		return err
	}

	now := c.clock.Now().UnixNano()
	c.lastWriteAt.Store(now)
	if f.IsHeartbeat() {
		c.lastHeartbeatAt.Store(now)
	}
	return nil
}

func (c *Connection) finish() {
	if err := c.stream.Close(); err != nil {
		c.logger.Debugf("stream close: %v", err)
	}
	c.state.Store(int32(StateClosed))
	close(c.closed)
}

// ConnectionInfo is a point-in-time description of a connection for status endpoints.
type ConnectionInfo struct {
	ID              string    `json:"id"`
	Transport       string    `json:"transport"`
	Topics          []string  `json:"topics"`
	State           string    `json:"state"`
	Pending         int       `json:"pending"`
	CreatedAt       time.Time `json:"created_at"`
	LastWriteAt     time.Time `json:"last_write_at"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at,omitzero"`
}

func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:              c.id,
		Transport:       c.transport,
		Topics:          c.topics.List(),
		State:           c.State().String(),
		Pending:         c.Pending(),
		CreatedAt:       c.createdAt,
		LastWriteAt:     c.LastWriteAt(),
		LastHeartbeatAt: c.LastHeartbeatAt(),
	}
}
