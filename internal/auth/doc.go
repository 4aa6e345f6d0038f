// Package auth gates WebSocket and REST access behind a shared token.
//
// Guard.Allow(r) checks the token from the `token` query parameter or an
// `Authorization: Bearer` header, query first — browser WebSocket clients
// cannot set headers.
//
// When mode != "token" or no token is configured, all requests pass
// (useful for local development with auth disabled). Guard.Middleware
// wraps REST handlers and answers 401 with a JSON error body.
package auth
