// Package store keeps the most recent workload snapshots in memory so the
// WebSocket hub, the status endpoint and cached reads can serve them without
// another upstream round trip. Nothing is written to disk.
package store
