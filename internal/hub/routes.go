package hub

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulsewire/pulsewire/internal/protocol"
)

// ServeChat handles GET /ws/chat/{room}: one socket in one room.
func (h *Hub) ServeChat(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Allow(r) {
		h.met.HandshakeRejected()
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	room := chi.URLParam(r, "room")
	if !ValidName(room) {
		h.met.HandshakeRejected()
		http.Error(w, "invalid room name", http.StatusNotFound)
		return
	}
	h.serve(w, r, h.chatRoute, room, ChatGroup(room))
}

// ServeNotifications handles GET /ws/notifications?user=<name>. With
// no user parameter the socket joins the public feed.
func (h *Hub) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Allow(r) {
		h.met.HandshakeRejected()
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	user := r.URL.Query().Get("user")
	if user != "" && !ValidName(user) {
		h.met.HandshakeRejected()
		http.Error(w, "invalid user name", http.StatusNotFound)
		return
	}
	h.serve(w, r, h.notifRoute, user, NotificationGroup(user))
}

// ServeCounter handles GET /ws/counter: every socket shares one group
// and one counter.
func (h *Hub) ServeCounter(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Allow(r) {
		h.met.HandshakeRejected()
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	h.serve(w, r, h.counterRoute, "", counterGroup)
}

// --- chat route ---

func newChatRoute() *route {
	return &route{
		name:          "chat",
		dispatchField: "type",
		defaultKind:   "chat_message",
		unknownReply:  "Unknown message type",
		onConnect:     chatConnected,
		onDisconnect:  chatDisconnected,
		handlers: map[string]inboundFunc{
			"chat_message": handleChatMessage,
		},
	}
}

func chatConnected(h *Hub, s *session) {
	h.publish(s.group, protocol.UserJoined())
}

func chatDisconnected(h *Hub, s *session) {
	h.publish(s.group, protocol.UserLeft())
}

func handleChatMessage(h *Hub, s *session, fields map[string]any) {
	msg, err := protocol.StringField(fields, "message", "")
	if err != nil {
		h.sendError(s.conn, "Invalid message")
		return
	}
	username, err := protocol.StringField(fields, "username", "Anonymous")
	if err != nil || username == "" {
		username = "Anonymous"
	}

	if err := protocol.ValidateMessage(msg, h.limits.Load().MaxMessageChars); err != nil {
		h.sendError(s.conn, "Invalid message")
		return
	}

	entry := h.hist.Append(s.key, username, msg)
	h.met.HistoryRecorded()
	h.publish(s.group, protocol.ChatMessage(username, msg, entry.At))
}

// --- notifications route ---

// The notifications feed is one-way. Anything a client sends is
// answered with an error event; the dispatch table is simply empty.
func newNotificationsRoute() *route {
	return &route{
		name:          "notifications",
		dispatchField: "type",
		defaultKind:   "",
		unknownReply:  "Unknown message type",
		onConnect: func(h *Hub, s *session) {
			h.sendDirect(s.conn, protocol.ConnectionStatus("connected", "Successfully connected to notifications"))
		},
		handlers: map[string]inboundFunc{},
	}
}

// --- counter route ---

func newCounterRoute() *route {
	return &route{
		name:          "counter",
		dispatchField: "action",
		defaultKind:   "increment",
		unknownReply:  "Unknown action",
		onConnect: func(h *Hub, s *session) {
			h.sendDirect(s.conn, protocol.CounterSnapshot(h.counter.Value()))
			publishUserCount(h)
		},
		onDisconnect: func(h *Hub, s *session) {
			publishUserCount(h)
		},
		handlers: map[string]inboundFunc{
			"increment": applyCounterAction("increment", 1),
			"decrement": applyCounterAction("decrement", 1),
			"reset":     applyCounterAction("reset", 0),
		},
	}
}

func applyCounterAction(action string, defaultValue float64) inboundFunc {
	return func(h *Hub, s *session, fields map[string]any) {
		value, err := protocol.NumberField(fields, "value", defaultValue)
		if err != nil {
			h.sendError(s.conn, "Invalid value")
			return
		}
		h.counter.Apply(action, value)
		h.publish(counterGroup, protocol.CounterUpdate(action, value))
	}
}

func publishUserCount(h *Hub) {
	h.publish(counterGroup, protocol.UserCount(h.reg.Count(counterGroup)))
}
