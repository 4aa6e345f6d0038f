// Package registry tracks which connections belong to which named
// groups. It is the only place group membership is mutated; everything
// above it works from Snapshot copies, so delivery never races a join
// or leave.
package registry
