// Package auth provides HTTP middleware that enforces API key authentication
// on the REST API and the WebSocket stream.
package auth
