package protocol

import (
	"time"

	"github.com/pulsewire/pulsewire/internal/event"
)

// Constructors for the events the server publishes. Keeping them here,
// next to the encoders, means a new kind cannot be added without its
// wire form.

// ChatMessage is a user message relayed to a chat room. The timestamp
// comes from the recorded history entry so peers and the REST history
// agree on it.
func ChatMessage(username, message string, at time.Time) event.Event {
	return event.NewAt(event.KindChatMessage, map[string]any{
		"username": username,
		"message":  message,
	}, at)
}

// UserJoined announces a new room member.
func UserJoined() event.Event {
	return event.New(event.KindUserJoined, map[string]any{
		"message": "A user joined the room",
	})
}

// UserLeft announces a departed room member.
func UserLeft() event.Event {
	return event.New(event.KindUserLeft, map[string]any{
		"message": "A user left the room",
	})
}

// CounterUpdate relays one applied counter action to the counter group.
func CounterUpdate(action string, value float64) event.Event {
	return event.New(event.KindCounterUpdate, map[string]any{
		"action": action,
		"value":  value,
	})
}

// CounterSnapshot is the current counter value, sent to a member right
// after it connects.
func CounterSnapshot(value float64) event.Event {
	return event.New(event.KindCounterSnapshot, map[string]any{
		"counter": value,
	})
}

// UserCount reports the size of the counter group after a join or
// leave.
func UserCount(n int) event.Event {
	return event.New(event.KindUserCount, map[string]any{
		"count": n,
	})
}

// Notification is an operator-pushed notice for a notification group.
func Notification(title, message, priority string) event.Event {
	if title == "" {
		title = "Notification"
	}
	if priority == "" {
		priority = "normal"
	}
	return event.New(event.KindNotification, map[string]any{
		"title":    title,
		"message":  message,
		"priority": priority,
	})
}

// ConnectionStatus is the welcome frame on a notification socket.
func ConnectionStatus(status, message string) event.Event {
	return event.New(event.KindConnectionStatus, map[string]any{
		"status":  status,
		"message": message,
	})
}

// ErrorEvent is the reply to a malformed or invalid inbound frame. It
// goes only to the offending connection, never to the group.
func ErrorEvent(message string) event.Event {
	return event.New(event.KindError, map[string]any{
		"message": message,
	})
}
