package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go-event-hub/internal/infrastructure/logger"
)

const DefaultWriteTimeout = 10 * time.Second

type Config struct {
	BufferSize        int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	StallTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        DefaultBufferSize,
		HeartbeatInterval: DefaultHeartbeatInterval,
		WriteTimeout:      DefaultWriteTimeout,
		StallTimeout:      DefaultStallTimeout,
	}
}

type Option func(*Hub)

func WithConfig(cfg Config) Option {
	return func(h *Hub) { h.cfg = cfg }
}

func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) { h.clock = clock }
}

func WithMetrics(m *Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub ties the registry, broadcaster and heartbeat scheduler together and
// owns their lifecycle.
type Hub struct {
	cfg     Config
	clock   clockwork.Clock
	logger  logger.Logger
	metrics *Metrics

	registry    *Registry
	broadcaster *Broadcaster
	heartbeat   *HeartbeatScheduler

	running   bool
	runningMu sync.RWMutex

	cancel        context.CancelFunc
	heartbeatDone chan struct{}
}

// New creates a stopped Hub.
func New(log logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		cfg:    DefaultConfig(),
		clock:  clockwork.NewRealClock(),
		logger: log.WithField("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}

	h.registry = NewRegistry()
	h.broadcaster = NewBroadcaster(h.registry, h.clock, log, h.metrics)
	h.heartbeat = NewHeartbeatScheduler(
		h.registry,
		h.cfg.HeartbeatInterval,
		h.cfg.StallTimeout,
		h.clock,
		log,
		h.metrics,
	)
	return h
}

func (h *Hub) Config() Config { return h.cfg }

// Start launches the heartbeat scheduler.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	hctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.heartbeatDone = make(chan struct{})
	h.running = true

	go func() {
		defer close(h.heartbeatDone)
		h.heartbeat.Run(hctx)
	}()

	h.logger.Infof("hub started (heartbeat every %s, buffer %d frames)",
		h.heartbeat.Interval(), h.cfg.BufferSize)
	return nil
}

// Stop closes every connection and waits, bounded by ctx, for their writers
// to release their streams.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	if !h.running {
		h.runningMu.Unlock()
		return nil
	}
	h.running = false
	h.cancel()
	h.runningMu.Unlock()

	<-h.heartbeatDone

	conns := h.registry.Snapshot()
	for _, conn := range conns {
		conn.Close(ErrHubStopped)
	}

	for _, conn := range conns {
		select {
		case <-conn.Closed():
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d connections to close: %w", len(conns), ctx.Err())
		}
	}

	h.logger.Infof("hub stopped, closed %d connections", len(conns))
	return nil
}

func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// NewConnection builds a Connecting connection with a fresh id and the hub's
// buffer size and clock.
func (h *Hub) NewConnection(transport string, topics TopicSet, stream Stream) *Connection {
	return NewConnection(
		uuid.NewString(),
		transport,
		topics,
		stream,
		h.logger,
		WithBufferSize(h.cfg.BufferSize),
		WithConnectionClock(h.clock),
	)
}

// Attach activates conn and registers it. On failure the connection is closed.
func (h *Hub) Attach(conn *Connection) error {
	if !h.IsRunning() {
		conn.Close(ErrHubNotRunning)
		return ErrHubNotRunning
	}

	conn.onClose = h.handleClosed
	if err := conn.activate(); err != nil {
		return err
	}

	if _, err := h.registry.Register(conn); err != nil {
		h.logger.Errorf("registry rejected connection %s: %v", conn.ID(), err)
		conn.Close(err)
		return err
	}
	h.metrics.ActiveConnections.WithLabelValues(conn.Transport()).Inc()

	// A Stop that raced with this Attach will not have seen conn.
	if !h.IsRunning() {
		conn.Close(ErrHubStopped)
		return ErrHubNotRunning
	}

	h.logger.Infof("connection %s registered (transport: %s, topics: %s)",
		conn.ID(), conn.Transport(), conn.Topics())
	return nil
}

func (h *Hub) handleClosed(conn *Connection, reason error) {
	if !h.registry.Unregister(conn.ID()) {
		return
	}

	label := disconnectReason(reason)
	h.metrics.ActiveConnections.WithLabelValues(conn.Transport()).Dec()
	h.metrics.Disconnects.WithLabelValues(label).Inc()

	switch label {
	case "client", "shutdown":
		h.logger.Infof("connection %s unregistered (%s)", conn.ID(), label)
	default:
		h.logger.Warnf("connection %s dropped (%s): %v", conn.ID(), label, reason)
	}
}

// Detach closes a connection as a normal client disconnect.
func (h *Hub) Detach(id string) {
	if conn, ok := h.registry.Get(id); ok {
		conn.Close(nil)
	}
}

// Publish is the fire-and-forget producer entry point for domain code.
func (h *Hub) Publish(topic string, payload any) {
	if _, err := h.Broadcast(topic, payload); err != nil {
		h.logger.Errorf("publish on %q rejected: %v", topic, err)
	}
}

// Broadcast publishes and returns the stamped event, or a validation/encoding error.
func (h *Hub) Broadcast(topic string, payload any) (Event, error) {
	return h.broadcaster.Publish(topic, payload)
}

// Beat runs one heartbeat round immediately.
func (h *Hub) Beat() int {
	return h.heartbeat.Beat()
}

func (h *Hub) GetConnection(id string) (*Connection, bool) {
	return h.registry.Get(id)
}

func (h *Hub) ConnectionCount() int {
	return h.registry.Len()
}

// Connections describes every registered connection.
func (h *Hub) Connections() []ConnectionInfo {
	conns := h.registry.Snapshot()
	out := make([]ConnectionInfo, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn.Info())
	}
	return out
}
