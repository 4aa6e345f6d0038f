package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pulsewire/pulsewire/internal/event"
)

// ErrUnknownKind reports an event kind with no registered encoder.
// Publishing such an event is a programming error, caught before any
// member sees a partial fan-out.
var ErrUnknownKind = errors.New("unknown event kind")

type encodeFunc func(event.Event) map[string]any

var encoders = map[string]encodeFunc{
	event.KindChatMessage: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":      "chat_message",
			"message":   str(ev, "message", ""),
			"username":  str(ev, "username", "Anonymous"),
			"timestamp": stamp(ev),
		}
	},
	event.KindUserJoined: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":    "notification",
			"message": str(ev, "message", "A user joined the room"),
			"event":   event.KindUserJoined,
		}
	},
	event.KindUserLeft: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":    "notification",
			"message": str(ev, "message", "A user left the room"),
			"event":   event.KindUserLeft,
		}
	},
	event.KindCounterUpdate: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":      "counter_update",
			"action":    str(ev, "action", "increment"),
			"value":     num(ev, "value", 1),
			"timestamp": stamp(ev),
		}
	},
	event.KindCounterSnapshot: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":    "counter_update",
			"counter": num(ev, "counter", 0),
			"message": "Connected to counter",
		}
	},
	event.KindUserCount: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":  "user_count_update",
			"count": intField(ev, "count", 0),
		}
	},
	event.KindNotification: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":      "notification",
			"title":     str(ev, "title", "Notification"),
			"message":   str(ev, "message", ""),
			"priority":  str(ev, "priority", "normal"),
			"timestamp": stamp(ev),
		}
	},
	event.KindConnectionStatus: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":      "connection_status",
			"status":    str(ev, "status", "connected"),
			"message":   str(ev, "message", ""),
			"timestamp": stamp(ev),
		}
	},
	event.KindError: func(ev event.Event) map[string]any {
		return map[string]any{
			"type":    "error",
			"message": str(ev, "message", "Server error occurred"),
		}
	},
}

// Encode renders an event to its wire form. The result is what every
// member of the target group receives, byte for byte.
func Encode(ev event.Event) ([]byte, error) {
	enc, ok := encoders[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	data, err := json.Marshal(enc(ev))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind, err)
	}
	return data, nil
}

// Supported reports whether kind has a registered encoder.
func Supported(kind string) bool {
	_, ok := encoders[kind]
	return ok
}

// Kinds lists every encodable kind in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(encoders))
	for k := range encoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- field access with encoder defaults ---

func str(ev event.Event, name, def string) string {
	if s, ok := ev.Fields[name].(string); ok {
		return s
	}
	return def
}

func num(ev event.Event, name string, def float64) float64 {
	switch v := ev.Fields[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intField(ev event.Event, name string, def int) int {
	switch v := ev.Fields[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func stamp(ev event.Event) string {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return at.Format(time.RFC3339)
}
