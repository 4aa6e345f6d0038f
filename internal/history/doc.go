// Package history keeps a bounded, in-memory record of chat messages per
// room, with a per-room cap and a retention window enforced by a
// background sweeper (Run). It backs the history REST endpoints; losing
// it on restart is accepted.
package history
