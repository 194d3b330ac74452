// Package config loads the server configuration from config.yaml.
//
// Sections:
//   - server: HTTP port, log level, REST auth, CORS origin, snapshot
//     retention, WebSocket interval, alert rules and webhooks
//   - source: upstream script URL (or FACULTYLOAD_SOURCE_URL), timeout,
//     retry policy, upstream auth and TLS options
//   - pipeline: strict_rows fails the batch on any unreadable row
//   - insights: local_fallback derives insights locally when upstream fails
//   - refresh: cron schedule for background refresh (empty disables)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change and hands the new Config to fn.
package config
