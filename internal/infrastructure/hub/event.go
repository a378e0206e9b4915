package hub

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one published change. It is passed by value and its Data is never
// modified after construction.
type Event struct {
	ID        uint64          `json:"id"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent validates the topic and serializes payload. The ID is left zero;
// the Broadcaster assigns it at publish time.
func NewEvent(topic string, payload any, createdAt time.Time) (Event, error) {
	if err := ValidateTopic(topic); err != nil {
		return Event{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload for topic %q: %w", topic, err)
	}

	return Event{
		Topic:     topic,
		Data:      data,
		CreatedAt: createdAt,
	}, nil
}
