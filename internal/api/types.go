package api

// HealthResponse is the GET /api/v1/health body.
type HealthResponse struct {
	Status            string  `json:"status"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	ActiveConnections int64   `json:"active_connections"`
	Groups            int     `json:"groups"`
}

// StatsResponse is the GET /api/v1/stats body.
type StatsResponse struct {
	UptimeSeconds      float64         `json:"uptime_seconds"`
	ActiveConnections  int64           `json:"active_connections"`
	TotalConnections   int64           `json:"total_connections"`
	RejectedHandshakes int64           `json:"rejected_handshakes"`
	FramesReceived     int64           `json:"frames_received"`
	Publishes          int64           `json:"publishes"`
	EventsDelivered    int64           `json:"events_delivered"`
	DeliveryFailures   int64           `json:"delivery_failures"`
	MessagesRecorded   int64           `json:"messages_recorded"`
	TotalMessages      int             `json:"total_messages"`
	BridgePublished    int64           `json:"bridge_published"`
	BridgeReceived     int64           `json:"bridge_received"`
	Groups             []GroupResponse `json:"groups"`
}

// GroupResponse is one live group and its population.
type GroupResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomResponse describes one chat room.
type RoomResponse struct {
	RoomName        string `json:"room_name"`
	MessageCount    int    `json:"message_count"`
	ActiveMembers   int    `json:"active_members"`
	LastMessageTime string `json:"last_message_time,omitempty"`
}

// RoomListResponse is the GET /api/v1/rooms body.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Count int            `json:"count"`
}

// CreateRoomRequest is the POST /api/v1/rooms body.
type CreateRoomRequest struct {
	RoomName       string `json:"room_name"`
	InitialMessage string `json:"initial_message"`
}

// CreateRoomResponse confirms a room creation.
type CreateRoomResponse struct {
	Message  string `json:"message"`
	RoomName string `json:"room_name"`
}

// MessageResponse is one stored chat message.
type MessageResponse struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// HistoryResponse is the GET /api/v1/rooms/{room}/history body.
// Messages are chronological; count is the page size, total the whole
// room.
type HistoryResponse struct {
	RoomName      string            `json:"room_name"`
	Messages      []MessageResponse `json:"messages"`
	Count         int               `json:"count"`
	TotalMessages int               `json:"total_messages"`
}

// DeleteHistoryResponse is the DELETE /api/v1/rooms/{room}/history
// body.
type DeleteHistoryResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// WSInfoResponse is the GET /api/v1/rooms/{room}/ws body: how to
// reach the room's socket and what frames it speaks.
type WSInfoResponse struct {
	RoomName      string         `json:"room_name"`
	WebsocketURL  string         `json:"websocket_url"`
	Connection    ConnectionInfo `json:"connection_info"`
	MessageFormat MessageFormat  `json:"message_format"`
}

// ConnectionInfo is the decomposed WebSocket address.
type ConnectionInfo struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Path     string `json:"path"`
}

// MessageFormat documents the frames a chat socket sends and receives.
type MessageFormat struct {
	Send    map[string]any `json:"send"`
	Receive map[string]any `json:"receive"`
}

// NotifyRequest is the POST /api/v1/notifications/send body. An empty
// user_id targets the public feed.
type NotifyRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// NotifyResponse reports a pushed notification's fan-out.
type NotifyResponse struct {
	Message    string `json:"message"`
	Group      string `json:"group"`
	Recipients int    `json:"recipients"`
	Delivered  int    `json:"delivered"`
}

type errorResponse struct {
	Error string `json:"error"`
}
