package config

import "time"

const (
	// Conversation
	MaxMessageLength = 4000

	// WebSocket
	WSWriteWait      = 10 * time.Second
	WSPongWait       = 60 * time.Second
	WSPingPeriod     = (WSPongWait * 9) / 10
	WSMaxFrameSize   = 32 << 10
	WSSendBufferSize = 256

	// Cross-instance room ordering
	RoomLockTTL  = 5 * time.Second
	RoomLockWait = 2 * time.Second

	// Reviews
	MinRating = 1
	MaxRating = 5

	// Tokens issued by the dev/admin helper
	DevTokenTTL = 72 * time.Hour
)
