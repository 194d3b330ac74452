// Package ws implements the WebSocket hub behind /ws/stream.
//
// Dashboards connect with an optional ?department= filter. Each receives the
// current snapshot on connect and then every new snapshot the store holds,
// checked every interval and after each refresh.
//
// Message format:
//
//	{
//	  "event": "snapshot",
//	  "data":  { "snapshot_id", "generated_at", "origin", "department", "records", "overview", "departments" }
//	}
package ws
