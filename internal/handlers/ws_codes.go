// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game feed.
const (
	BadSubprotocolError  = 3000 // Client connected with an unsupported subprotocol.
	FeedUnavailableError = 3001 // The event source could not be subscribed to.
)
