package server

import "time"

// Server configuration constants
const (
	// Events replayed to a websocket client when it connects
	BacklogEvents = 20

	// Upper bound for /api/events?n=
	MaxEventsQuery = 200

	ReadHeaderTimeout = 5 * time.Second
	ShutdownTimeout   = 5 * time.Second

	// Per-message write deadline on websocket clients
	WriteTimeout = 5 * time.Second
)
