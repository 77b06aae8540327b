// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler. These provide more
// specific reasons for closure than the standard codes. Failures after the
// handshake (bad tokens, unknown rooms) answer in-band with action_rejected
// instead of closing the connection.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)
