// Package event defines the unit of fan-out: a kind-tagged, timestamped
// field map published to a group and delivered to every member's peer.
// Events are immutable by construction; constructors copy their field
// maps.
package event
