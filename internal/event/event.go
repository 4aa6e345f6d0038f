package event

import "time"

// Kinds routed through the broadcast layer. The kind selects the wire
// encoder; it is not always the same as the "type" field the peer sees.
const (
	KindChatMessage      = "chat_message"
	KindUserJoined       = "user_joined"
	KindUserLeft         = "user_left"
	KindCounterUpdate    = "counter_update"
	KindCounterSnapshot  = "counter_snapshot"
	KindUserCount        = "user_count_update"
	KindNotification     = "send_notification"
	KindConnectionStatus = "connection_status"
	KindError            = "error"
)

// Event is one message bound for a group. Fields carries the
// kind-specific payload. Callers must not modify Fields after
// construction; treat an Event as immutable once built.
type Event struct {
	Kind   string
	At     time.Time
	Fields map[string]any
}

// New builds an Event stamped with the current UTC time. The fields
// map is copied so later changes by the caller do not leak in.
func New(kind string, fields map[string]any) Event {
	return NewAt(kind, fields, time.Now().UTC())
}

// NewAt is New with an explicit timestamp, for callers that already
// hold one (history entries, tests).
func NewAt(kind string, fields map[string]any, at time.Time) Event {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Event{Kind: kind, At: at.UTC(), Fields: cp}
}

// Field returns the named payload field, or nil when absent.
func (e Event) Field(name string) any {
	return e.Fields[name]
}
