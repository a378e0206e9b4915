package inbound

import "time"

// ChangeAction is the kind of mutation a ResourceChange describes.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

func (a ChangeAction) Valid() bool {
	switch a {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return true
	}
	return false
}

// ResourceChange is the payload published after a record is written.
type ResourceChange struct {
	Resource string       `json:"resource"`
	Action   ChangeAction `json:"action"`
	ID       string       `json:"id"`
	Data     any          `json:"data,omitempty"`
	At       time.Time    `json:"at"`
}

// EventUseCase is how domain code pushes live updates to connected clients.
// Delivery is best effort and nothing is reported back to the caller.
type EventUseCase interface {
	Publish(topic string, payload any)
	ResourceChanged(resource string, action ChangeAction, id string, data any)
}
