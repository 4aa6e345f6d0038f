// Package config loads and watches the server configuration file
// (config.yaml), all of it under the `server:` key.
//
// Config fields:
//   - HTTPPort        — port for the WebSocket routes, REST API, and metrics (default 8080)
//   - LogLevel        — debug | info | warn | error (default info)
//   - Auth.Mode       — "token" or "none"; Auth.TokenEnv names the environment
//     variable holding the shared token, resolved by Token()
//   - Limits          — max_message_chars, max_frame_bytes, send_buffer,
//     write_timeout, pong_timeout for each WebSocket connection
//   - History         — max_per_room ring size and retention window
//   - Cluster         — redis_addr, redis_db, redis_password_env, channel,
//     instance_id for the optional inter-instance bridge; empty redis_addr
//     runs standalone
//
// Secrets never live in the file: Auth.TokenEnv and Cluster.RedisPasswordEnv
// name environment variables that are resolved at use.
//
// Load(path) applies defaults before unmarshalling, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config, keeping the previous configuration
// when a reload fails to parse or validate. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after a rename
// event.
package config
