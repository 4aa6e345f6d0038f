// Package bridge links server instances through a Redis pub/sub
// channel so a publish on one instance reaches every instance's local
// members.
//
// Each locally published frame is wrapped in an envelope carrying the
// origin instance ID, the target group, the event kind, and the
// already-encoded frame, then published to the shared channel. Every
// instance subscribes to the same channel; envelopes from its own
// origin are skipped, the rest are fanned out locally as-is, so remote
// members receive byte-identical frames.
//
// Per-instance presence counts (user_count_update) are never bridged;
// each instance reports its own.
package bridge
