package hub

import (
	"strconv"
)

// Frame is one unit queued for a connection's writer: an event or a keep-alive.
type Frame struct {
	heartbeat bool
	event     Event
}

func EventFrame(e Event) Frame {
	return Frame{event: e}
}

func HeartbeatFrame() Frame {
	return Frame{heartbeat: true}
}

func (f Frame) IsHeartbeat() bool {
	return f.heartbeat
}

func (f Frame) Event() Event {
	return f.event
}

var heartbeatSSE = []byte(": keep-alive\n\n")

// EncodeSSE renders a frame in the text/event-stream wire format:
//
//	event: <topic>
//	id: <sequence>
//	data: <json>
//
// Heartbeats render as a comment line that standard clients ignore.
func EncodeSSE(f Frame) []byte {
	if f.heartbeat {
		return heartbeatSSE
	}

	e := f.event
	buf := make([]byte, 0, len(e.Topic)+len(e.Data)+40)
	buf = append(buf, "event: "...)
	buf = append(buf, e.Topic...)
	buf = append(buf, "\nid: "...)
	buf = strconv.AppendUint(buf, e.ID, 10)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, e.Data...)
	buf = append(buf, "\n\n"...)
	return buf
}
