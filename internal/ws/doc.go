// Package ws wraps one upgraded WebSocket in a Conn with a single
// write loop and a bounded send queue.
//
// All outbound traffic for a connection goes through Send, which
// enqueues without blocking: gorilla/websocket allows only one
// concurrent writer, and funneling every frame through the write loop
// keeps that invariant without making publishers wait on a slow peer.
// A peer that stops draining fills its queue; the next Send
// force-closes the connection and reports ErrSendBufferFull, so one
// stuck member costs the group at most a queue's worth of memory.
//
// Close may be called from any goroutine, any number of times. The
// first call wins: it records the close code, flips the state to
// Closing, and signals both loops. The write loop sends the close
// frame, the read loop unblocks when the socket shuts, and Run fires
// Handler.OnClose exactly once with the winning code. Frames still
// queued at that point are dropped.
//
// Liveness follows the usual ping/pong discipline: the write loop
// pings at 9/10 of the pong timeout and the read deadline extends on
// every pong, so a silent peer is detected within one timeout.
package ws
