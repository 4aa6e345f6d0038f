package hub

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pulsewire/pulsewire/internal/auth"
	"github.com/pulsewire/pulsewire/internal/config"
	"github.com/pulsewire/pulsewire/internal/event"
	"github.com/pulsewire/pulsewire/internal/history"
	"github.com/pulsewire/pulsewire/internal/metrics"
	"github.com/pulsewire/pulsewire/internal/protocol"
	"github.com/pulsewire/pulsewire/internal/registry"
	"github.com/pulsewire/pulsewire/internal/router"
	"github.com/pulsewire/pulsewire/internal/ws"
)

const (
	chatGroupPrefix  = "chat_"
	notifGroupPrefix = "notifications_"
	counterGroup     = "global_counter"
	publicFeed       = "public"
)

// ChatGroup returns the group name backing a chat room.
func ChatGroup(room string) string { return chatGroupPrefix + room }

// NotificationGroup returns the group name for a user's notification
// feed; an empty user means the public feed.
func NotificationGroup(user string) string {
	if user == "" {
		user = publicFeed
	}
	return notifGroupPrefix + user
}

var namePattern = regexp.MustCompile(`^\w+$`)

// ValidName reports whether a room or user path segment is usable:
// word characters only, at most 64 of them.
func ValidName(s string) bool {
	return len(s) <= 64 && namePattern.MatchString(s)
}

// Hub owns the live sessions. It accepts WebSocket requests, joins
// connections to their groups, dispatches inbound frames to per-route
// handlers, and tears sessions down on disconnect.
type Hub struct {
	reg   *registry.Registry
	rt    *router.Router
	hist  *history.Store
	met   *metrics.Set
	guard *auth.Guard

	limits atomic.Pointer[config.LimitsConfig]

	counter counter

	mu       sync.RWMutex
	sessions map[string]*session

	chatRoute    *route
	notifRoute   *route
	counterRoute *route
}

// session is one live connection plus its route context.
type session struct {
	conn  *ws.Conn
	route *route
	key   string // room name or notification user
	group string
}

// route describes how one WebSocket endpoint treats its traffic: which
// field selects the handler, what to assume when it is absent, and
// what to do on connect and disconnect.
type route struct {
	name          string
	dispatchField string
	defaultKind   string
	unknownReply  string
	onConnect     func(h *Hub, s *session)
	onDisconnect  func(h *Hub, s *session)
	handlers      map[string]inboundFunc
}

type inboundFunc func(h *Hub, s *session, fields map[string]any)

// New wires a hub. Every event kind the routes emit must have an
// encoder; a missing one fails construction rather than surfacing as a
// broken broadcast later.
func New(reg *registry.Registry, rt *router.Router, hist *history.Store, met *metrics.Set, guard *auth.Guard, limits config.LimitsConfig) (*Hub, error) {
	h := &Hub{
		reg:      reg,
		rt:       rt,
		hist:     hist,
		met:      met,
		guard:    guard,
		sessions: make(map[string]*session),
	}
	h.limits.Store(&limits)
	h.chatRoute = newChatRoute()
	h.notifRoute = newNotificationsRoute()
	h.counterRoute = newCounterRoute()

	emitted := []string{
		event.KindChatMessage,
		event.KindUserJoined,
		event.KindUserLeft,
		event.KindCounterUpdate,
		event.KindCounterSnapshot,
		event.KindUserCount,
		event.KindConnectionStatus,
		event.KindError,
	}
	for _, kind := range emitted {
		if !protocol.Supported(kind) {
			return nil, fmt.Errorf("hub: no encoder for event kind %q", kind)
		}
	}
	return h, nil
}

// UpdateLimits swaps the per-connection limits. Applies to connections
// accepted after the call; live connections keep the limits they were
// accepted with.
func (h *Hub) UpdateLimits(limits config.LimitsConfig) {
	h.limits.Store(&limits)
}

func (h *Hub) wsOptions() ws.Options {
	l := h.limits.Load()
	return ws.Options{
		SendBuffer:    l.SendBuffer,
		MaxFrameBytes: l.MaxFrameBytes,
		WriteTimeout:  l.WriteTimeout,
		PongTimeout:   l.PongTimeout,
	}
}

// serve upgrades the request and runs the session until the connection
// closes, holding the HTTP handler open for its lifetime.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, rt *route, key, group string) {
	conn, err := ws.Accept(w, r, uuid.NewString(), h.wsOptions(), h)
	if err != nil {
		h.met.HandshakeRejected()
		slog.Warn("websocket upgrade failed", "route", rt.name, "err", err)
		return
	}

	s := &session{conn: conn, route: rt, key: key, group: group}
	h.mu.Lock()
	h.sessions[conn.ID()] = s
	h.mu.Unlock()

	h.reg.Add(group, conn.ID(), conn)
	h.met.ConnOpened()
	slog.Info("websocket connected",
		"route", rt.name, "conn", conn.ID(), "group", group, "remote", conn.RemoteAddr())

	if rt.onConnect != nil {
		rt.onConnect(h, s)
	}

	conn.Run()
}

// OnMessage dispatches one inbound frame through the session's route
// table. Malformed input is answered on the same socket and never
// closes it; a panicking handler is contained the same way.
func (h *Hub) OnMessage(c *ws.Conn, data []byte) {
	h.met.FrameReceived()

	h.mu.RLock()
	s := h.sessions[c.ID()]
	h.mu.RUnlock()
	if s == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("message handler panicked",
				"route", s.route.name, "conn", c.ID(), "panic", r)
			h.sendError(c, "Server error occurred")
		}
	}()

	fields, err := protocol.Decode(data)
	if err != nil {
		h.sendError(c, "Invalid JSON format")
		return
	}

	kind, err := protocol.DispatchKey(fields, s.route.dispatchField, s.route.defaultKind)
	if err != nil {
		h.sendError(c, s.route.unknownReply)
		return
	}
	handler, ok := s.route.handlers[kind]
	if !ok {
		h.sendError(c, s.route.unknownReply)
		return
	}
	handler(h, s, fields)
}

// OnClose tears the session down: membership first, then the route's
// departure traffic, so the leave event never reaches the leaver.
func (h *Hub) OnClose(c *ws.Conn, code int) {
	h.mu.Lock()
	s, ok := h.sessions[c.ID()]
	delete(h.sessions, c.ID())
	h.mu.Unlock()
	if !ok {
		return
	}

	h.reg.RemoveEverywhere(c.ID())
	h.met.ConnClosed()
	slog.Info("websocket disconnected",
		"route", s.route.name, "conn", c.ID(), "group", s.group, "code", code)

	if s.route.onDisconnect != nil {
		s.route.onDisconnect(h, s)
	}
}

// Shutdown force-closes every live session. Pending queues are
// dropped; peers get a going-away close frame.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*ws.Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.conn)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// Sessions reports the number of live sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) sendDirect(c *ws.Conn, ev event.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("encode failed", "kind", ev.Kind, "err", err)
		return
	}
	if err := c.Send(data); err != nil {
		slog.Debug("direct send dropped", "conn", c.ID(), "err", err)
	}
}

func (h *Hub) sendError(c *ws.Conn, msg string) {
	h.sendDirect(c, protocol.ErrorEvent(msg))
}

func (h *Hub) publish(group string, ev event.Event) {
	if _, err := h.rt.Publish(group, ev); err != nil {
		slog.Error("publish failed", "group", group, "kind", ev.Kind, "err", err)
	}
}
