package hub

import (
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	"go-event-hub/internal/infrastructure/logger"
)

// Broadcaster assigns sequence ids to published events and fans them out to
// every matching connection in the registry.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
	logger   logger.Logger
	metrics  *Metrics

	// publishMu keeps id order and per-connection queue order identical.
	publishMu sync.Mutex
	seq       uint64
}

func NewBroadcaster(registry *Registry, clock clockwork.Clock, log logger.Logger, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		clock:    clock,
		logger:   log.WithField("component", "broadcaster"),
		metrics:  metrics,
	}
}

// Publish validates and encodes payload, then queues it on every connection
// subscribed to topic. The error covers validation and encoding only; delivery
// problems are handled per connection and never returned.
func (b *Broadcaster) Publish(topic string, payload any) (Event, error) {
	event, err := NewEvent(topic, payload, b.clock.Now())
	if err != nil {
		return Event{}, err
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.seq++
	event.ID = b.seq
	frame := EventFrame(event)

	queued := 0
	matched := b.registry.ForEach(matches(topic), func(conn *Connection) {
		if b.deliver(conn, frame) {
			queued++
		}
	})

	b.metrics.EventsPublished.WithLabelValues(topic).Inc()
	b.metrics.FramesQueued.Add(float64(queued))
	b.metrics.PublishFanout.Observe(float64(matched))

	b.logger.Debugf("published event %d on %q to %d/%d connections", event.ID, topic, queued, matched)
	return event, nil
}

func matches(topic string) func(*Connection) bool {
	return func(conn *Connection) bool {
		return conn.Matches(topic)
	}
}

// deliver queues frame on conn, dropping the connection if it cannot keep up.
func (b *Broadcaster) deliver(conn *Connection, frame Frame) bool {
	err := conn.Enqueue(frame)
	if err == nil {
		return true
	}

	// Already closing; its own cleanup is in flight.
	if errors.Is(err, ErrConnectionClosed) {
		return false
	}

	conn.Close(err)
	return false
}
