package chathub

import (
	"context"
	"time"

	"gigmarket/backend/internal/models"
)

// Relay carries room events between hub instances. storage.Service implements
// it on Redis pub/sub.
type Relay interface {
	PublishRoomEvent(ctx context.Context, evt models.RoomEvent) error
	SubscribeToOrderRooms(ctx context.Context) (<-chan models.RoomEvent, error)
	// LockOrderRoom serialises append-and-publish for one order across
	// instances, so every subscriber sees the room's messages in commit order.
	LockOrderRoom(ctx context.Context, orderID string, ttl time.Duration) (unlock func(), err error)
}
