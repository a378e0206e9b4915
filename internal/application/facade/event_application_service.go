package facade

import (
	"time"

	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/port/inbound"
)

// Publisher is the producer side of the hub.
type Publisher interface {
	Publish(topic string, payload any)
}

type EventApplicationService struct {
	publisher Publisher
	logger    logger.Logger
	now       func() time.Time
}

var _ inbound.EventUseCase = (*EventApplicationService)(nil)

func NewEventApplicationService(publisher Publisher, log logger.Logger) *EventApplicationService {
	return &EventApplicationService{
		publisher: publisher,
		logger:    log.WithField("service", "events"),
		now:       time.Now,
	}
}

func (s *EventApplicationService) Publish(topic string, payload any) {
	s.publisher.Publish(topic, payload)
}

// ResourceChanged publishes on the topic named after the resource, so a client
// watching "orders" sees every order change.
func (s *EventApplicationService) ResourceChanged(resource string, action inbound.ChangeAction, id string, data any) {
	if !action.Valid() {
		s.logger.Warnf("ignoring %s change with unknown action %q", resource, action)
		return
	}
	if action == inbound.ChangeDeleted {
		data = nil
	}

	s.publisher.Publish(resource, inbound.ResourceChange{
		Resource: resource,
		Action:   action,
		ID:       id,
		Data:     data,
		At:       s.now().UTC(),
	})
}
