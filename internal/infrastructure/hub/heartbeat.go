package hub

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"go-event-hub/internal/infrastructure/logger"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultStallTimeout      = 45 * time.Second
)

// HeartbeatScheduler periodically queues a keep-alive frame on every
// registered connection, and drops connections whose writer has stalled.
type HeartbeatScheduler struct {
	registry     *Registry
	interval     time.Duration
	stallTimeout time.Duration
	clock        clockwork.Clock
	logger       logger.Logger
	metrics      *Metrics
}

func NewHeartbeatScheduler(
	registry *Registry,
	interval time.Duration,
	stallTimeout time.Duration,
	clock clockwork.Clock,
	log logger.Logger,
	metrics *Metrics,
) *HeartbeatScheduler {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatScheduler{
		registry:     registry,
		interval:     interval,
		stallTimeout: stallTimeout,
		clock:        clock,
		logger:       log.WithField("component", "heartbeat"),
		metrics:      metrics,
	}
}

func (s *HeartbeatScheduler) Interval() time.Duration {
	return s.interval
}

// Run beats every interval until ctx is done.
func (s *HeartbeatScheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Beat()
		}
	}
}

// Beat runs one keep-alive round and returns the number of frames queued.
func (s *HeartbeatScheduler) Beat() int {
	now := s.clock.Now()
	sent := 0

	s.registry.ForEach(nil, func(conn *Connection) {
		if s.stalled(conn, now) {
			s.logger.Warnf("connection %s stalled with %d pending frames since %s",
				conn.ID(), conn.Pending(), conn.LastWriteAt().Format(time.RFC3339))
			conn.Close(ErrSlowConsumer)
			return
		}

		err := conn.Enqueue(HeartbeatFrame())
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrConnectionClosed):
		default:
			conn.Close(err)
		}
	})

	s.metrics.HeartbeatsQueued.Add(float64(sent))
	return sent
}

// stalled reports a connection that has work queued but has not finished a
// write for longer than the stall timeout.
func (s *HeartbeatScheduler) stalled(conn *Connection, now time.Time) bool {
	if s.stallTimeout <= 0 || conn.Pending() == 0 {
		return false
	}
	return now.Sub(conn.LastWriteAt()) > s.stallTimeout
}
