// Package api serves the REST endpoints under /api/v1: room listings,
// chat history, WebSocket connection info, operator notification
// pushes, and server stats. Read endpoints are open; mutating ones sit
// behind the auth guard.
package api
