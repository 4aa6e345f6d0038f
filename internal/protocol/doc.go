// Package protocol owns the JSON wire format spoken over WebSocket
// connections: decoding and validating inbound client frames, and
// encoding outbound events before fan-out.
//
// Inbound frames are JSON objects carrying a dispatch field ("type" on
// chat sockets, "action" on counter sockets). Decode parses the object,
// DispatchKey extracts the dispatch value with a per-route default, and
// the route's handler table picks the behavior. Unknown keys and
// malformed frames never terminate the connection; they are answered
// with an error event on the same socket.
//
// Outbound events are encoded exactly once per publish through a
// kind-keyed encoder table. The event kind selects the encoder and is
// not always the "type" the peer sees: membership events such as
// user_joined reach the peer as type "notification", and a counter
// snapshot reaches it as type "counter_update".
//
//	kind               wire "type"
//	----               -----------
//	chat_message       chat_message
//	user_joined        notification
//	user_left          notification
//	counter_update     counter_update
//	counter_snapshot   counter_update
//	user_count_update  user_count_update
//	send_notification  notification
//	connection_status  connection_status
//	error              error
//
// Timestamps are RFC 3339 in UTC.
package protocol
