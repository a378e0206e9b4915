package hub

import "errors"

var (
	ErrInvalidTopic         = errors.New("invalid topic")
	ErrHubNotRunning        = errors.New("hub is not running")
	ErrHubStopped           = errors.New("hub stopped")
	ErrDuplicateConnection  = errors.New("duplicate connection id")
	ErrConnectionNotActive  = errors.New("connection is not active")
	ErrConnectionClosed     = errors.New("connection is closed")
	ErrSlowConsumer         = errors.New("slow consumer: outbound buffer full")
	ErrWriteFailed          = errors.New("write failed")
	ErrStreamingUnsupported = errors.New("streaming not supported")
)

// disconnectReason maps a close cause to a low-cardinality label for logs and metrics.
func disconnectReason(err error) string {
	switch {
	case err == nil:
		return "client"
	case errors.Is(err, ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, ErrWriteFailed):
		return "write_error"
	case errors.Is(err, ErrHubStopped):
		return "shutdown"
	case errors.Is(err, ErrDuplicateConnection):
		return "internal"
	default:
		return "other"
	}
}
