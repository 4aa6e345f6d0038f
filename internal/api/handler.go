package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulsewire/pulsewire/internal/auth"
	"github.com/pulsewire/pulsewire/internal/history"
	"github.com/pulsewire/pulsewire/internal/hub"
	"github.com/pulsewire/pulsewire/internal/metrics"
	"github.com/pulsewire/pulsewire/internal/protocol"
	"github.com/pulsewire/pulsewire/internal/registry"
	"github.com/pulsewire/pulsewire/internal/router"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handler serves the /api/v1 routes. It reads from the registry and
// history and publishes through the router; it never touches sockets
// directly.
type Handler struct {
	reg  *registry.Registry
	hist *history.Store
	rt   *router.Router
	met  *metrics.Set
}

// New wires the REST routes. Mount the returned handler at /api/v1.
func New(reg *registry.Registry, hist *history.Store, rt *router.Router, met *metrics.Set, guard *auth.Guard) http.Handler {
	h := &Handler{reg: reg, hist: hist, rt: rt, met: met}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.health)
	r.Get("/stats", h.stats)
	r.Get("/rooms", h.listRooms)
	r.With(guard.Middleware).Post("/rooms", h.createRoom)
	r.Get("/rooms/{room}/history", h.roomHistory)
	r.With(guard.Middleware).Delete("/rooms/{room}/history", h.deleteHistory)
	r.Get("/rooms/{room}/ws", h.websocketInfo)
	r.With(guard.Middleware).Post("/notifications/send", h.sendNotification)

	return r
}

// --- route handlers ---------------------------------------------------------

// health returns GET /health — liveness plus headline numbers.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	snap := h.met.Snapshot()
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		UptimeSeconds:     snap.UptimeSeconds,
		ActiveConnections: snap.ConnectionsActive,
		Groups:            len(h.reg.Groups()),
	})
}

// stats returns GET /stats — the full counter snapshot and live
// groups.
func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	snap := h.met.Snapshot()

	groups := h.reg.Groups()
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupResponse{Name: g.Name, Members: g.Members})
	}

	total := 0
	for _, info := range h.hist.Rooms() {
		total += info.Messages
	}

	jsonResp(w, http.StatusOK, StatsResponse{
		UptimeSeconds:      snap.UptimeSeconds,
		ActiveConnections:  snap.ConnectionsActive,
		TotalConnections:   snap.ConnectionsOpened,
		RejectedHandshakes: snap.HandshakesRejected,
		FramesReceived:     snap.FramesReceived,
		Publishes:          snap.Publishes,
		EventsDelivered:    snap.EventsDelivered,
		DeliveryFailures:   snap.DeliveryFailures,
		MessagesRecorded:   snap.HistoryRecorded,
		TotalMessages:      total,
		BridgePublished:    snap.BridgePublished,
		BridgeReceived:     snap.BridgeReceived,
		Groups:             out,
	})
}

// listRooms returns GET /rooms — every room that has history or live
// members.
func (h *Handler) listRooms(w http.ResponseWriter, _ *http.Request) {
	byName := make(map[string]*RoomResponse)
	order := make([]string, 0)

	for _, info := range h.hist.Rooms() {
		byName[info.Name] = &RoomResponse{
			RoomName:        info.Name,
			MessageCount:    info.Messages,
			LastMessageTime: info.LastAt.Format(time.RFC3339),
		}
		order = append(order, info.Name)
	}

	// Rooms with members but no messages yet still count.
	for _, g := range h.reg.Groups() {
		room, ok := strings.CutPrefix(g.Name, hub.ChatGroup(""))
		if !ok {
			continue
		}
		if r, exists := byName[room]; exists {
			r.ActiveMembers = g.Members
			continue
		}
		byName[room] = &RoomResponse{RoomName: room, ActiveMembers: g.Members}
		order = append(order, room)
	}

	sort.Strings(order)
	rooms := make([]RoomResponse, 0, len(order))
	for _, name := range order {
		rooms = append(rooms, *byName[name])
	}
	jsonResp(w, http.StatusOK, RoomListResponse{Rooms: rooms, Count: len(rooms)})
}

// createRoom handles POST /rooms — seeds a room with a system message.
func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !hub.ValidName(req.RoomName) {
		jsonErr(w, http.StatusBadRequest, "invalid room name")
		return
	}

	if h.hist.Count(req.RoomName) > 0 {
		jsonResp(w, http.StatusOK, CreateRoomResponse{
			Message:  "Room already exists",
			RoomName: req.RoomName,
		})
		return
	}

	msg := req.InitialMessage
	if msg == "" {
		msg = "Room created"
	}
	h.hist.Append(req.RoomName, "system", msg)
	h.met.HistoryRecorded()
	jsonResp(w, http.StatusCreated, CreateRoomResponse{
		Message:  "Room created successfully",
		RoomName: req.RoomName,
	})
}

// roomHistory returns GET /rooms/{room}/history — a chronological page
// of the room's log. offset pages back from the newest message.
func (h *Handler) roomHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !hub.ValidName(room) {
		jsonErr(w, http.StatusBadRequest, "invalid room name")
		return
	}

	limit, err := intQuery(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 0 {
		jsonErr(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil || offset < 0 {
		jsonErr(w, http.StatusBadRequest, "invalid offset")
		return
	}

	entries := h.hist.List(room, limit, offset)
	msgs := make([]MessageResponse, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, toMessageResponse(e))
	}
	jsonResp(w, http.StatusOK, HistoryResponse{
		RoomName:      room,
		Messages:      msgs,
		Count:         len(msgs),
		TotalMessages: h.hist.Count(room),
	})
}

// deleteHistory handles DELETE /rooms/{room}/history.
func (h *Handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !hub.ValidName(room) {
		jsonErr(w, http.StatusBadRequest, "invalid room name")
		return
	}
	jsonResp(w, http.StatusOK, DeleteHistoryResponse{
		Message:      "Chat history deleted",
		DeletedCount: h.hist.Delete(room),
	})
}

// websocketInfo returns GET /rooms/{room}/ws — where to connect
// and what to say once there.
func (h *Handler) websocketInfo(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !hub.ValidName(room) {
		jsonErr(w, http.StatusBadRequest, "invalid room name")
		return
	}

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	path := "/ws/chat/" + room
	jsonResp(w, http.StatusOK, WSInfoResponse{
		RoomName:     room,
		WebsocketURL: scheme + "://" + r.Host + path,
		Connection: ConnectionInfo{
			Protocol: scheme,
			Host:     r.Host,
			Path:     path,
		},
		MessageFormat: MessageFormat{
			Send: map[string]any{
				"type":     "chat_message",
				"message":  "string (required, 1-1000 chars)",
				"username": "string (optional, defaults to Anonymous)",
			},
			Receive: map[string]any{
				"type":      "chat_message | notification | error",
				"message":   "string",
				"username":  "string",
				"timestamp": "RFC 3339",
			},
		},
	})
}

// sendNotification handles POST /notifications/send — pushes one
// notification to a user feed or the public one.
func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		jsonErr(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID != "" && !hub.ValidName(req.UserID) {
		jsonErr(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	group := hub.NotificationGroup(req.UserID)
	res, err := h.rt.Publish(group, protocol.Notification(req.Title, req.Message, req.Priority))
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "notification publish failed")
		return
	}
	jsonResp(w, http.StatusOK, NotifyResponse{
		Message:    "Notification sent",
		Group:      group,
		Recipients: res.Recipients,
		Delivered:  res.Delivered,
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func toMessageResponse(e history.Entry) MessageResponse {
	return MessageResponse{
		ID:        e.ID,
		Username:  e.Username,
		Message:   e.Message,
		Timestamp: e.At.Format(time.RFC3339),
	}
}
