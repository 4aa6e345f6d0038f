// Package router fans published events out to group members.
//
// Publish(group, event) encodes the event once and delivers the same
// bytes to every member of the group as of the moment of publish.
// Publishes are serialized, so all members of a group observe events in
// publish-call order; a slow or failed member never blocks the rest.
//
// The router owns no membership and no sockets. With a Relay attached,
// every published frame is also forwarded to peer instances; Fanout
// delivers a frame from a peer to local members without re-relaying it.
package router
