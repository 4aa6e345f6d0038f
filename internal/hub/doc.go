// Package hub binds WebSocket endpoints to groups and message
// handlers.
//
// Three routes hang off it. /ws/chat/{room} joins the room's group,
// announces the join, and relays validated chat messages to every
// member, recording each one to history. /ws/notifications joins a
// per-user feed (or the public one) and only ever receives.
// /ws/counter joins the single shared-counter group, where every
// member sees each applied action and the group's population.
//
// Each route is a small dispatch table: a field to dispatch on, a
// default key for frames that omit it, and a handler per key. Frames
// that fail to decode, name an unknown key, or fail validation are
// answered with an error event on the offending socket only; the
// socket stays open. Published events go to the sender too, so a chat
// member sees its own message exactly as the room does.
//
// The hub is the only writer of session state. On disconnect it
// removes the connection from every group before publishing the leave
// event, so nobody ever sees a leave for a member still present, and
// the departed socket never sees its own.
package hub
