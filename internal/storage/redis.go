package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"gigmarket/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	roomChannelPrefix = "order-room:"
	roomLockPrefix    = "order-room-lock:"
	jobKeyPrefix      = "job:"

	roomLockRetry = 10 * time.Millisecond
)

// Deletes the lock only if we still own it.
var releaseRoomLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PublishRoomEvent publishes evt on the order's Redis channel.
func (s *Service) PublishRoomEvent(ctx context.Context, evt models.RoomEvent) error {
	if s.Redis == nil {
		return ErrRedisDisabled
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return s.Redis.Publish(ctx, roomChannelPrefix+evt.OrderID, payload).Err()
}

// SubscribeToOrderRooms pattern-subscribes to every order channel. The returned
// channel is closed when ctx is cancelled or the subscription ends.
func (s *Service) SubscribeToOrderRooms(ctx context.Context) (<-chan models.RoomEvent, error) {
	if s.Redis == nil {
		return nil, ErrRedisDisabled
	}

	pubsub := s.Redis.PSubscribe(ctx, roomChannelPrefix+"*")
	// Wait for the subscription confirmation so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan models.RoomEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt models.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("Error unmarshalling Redis message on %s: %v", msg.Channel, err)
					continue
				}
				if evt.OrderID == "" {
					evt.OrderID = strings.TrimPrefix(msg.Channel, roomChannelPrefix)
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// LockOrderRoom takes the order's room lock, retrying until ctx ends. The lock
// expires after ttl if the holder never releases it.
func (s *Service) LockOrderRoom(ctx context.Context, orderID string, ttl time.Duration) (func(), error) {
	if s.Redis == nil {
		return nil, ErrRedisDisabled
	}

	key := roomLockPrefix + orderID
	token := uuid.NewString()
	for {
		ok, err := s.Redis.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(roomLockRetry):
		}
	}

	unlock := func() {
		// The caller's ctx may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), ttl)
		defer cancel()
		if err := releaseRoomLock.Run(releaseCtx, s.Redis, []string{key}, token).Err(); err != nil {
			log.Printf("WARN: Failed to release room lock for order %s: %v", orderID, err)
		}
	}
	return unlock, nil
}

// SaveJob stores the job record, resetting its TTL.
func (s *Service) SaveJob(ctx context.Context, job *models.Job, ttl time.Duration) error {
	if s.Redis == nil {
		return ErrRedisDisabled
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, jobKeyPrefix+job.ID, payload, ttl).Err()
}

// GetJob loads a job record; expired or unknown ids yield ErrNotFound.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	if s.Redis == nil {
		return nil, ErrRedisDisabled
	}

	raw, err := s.Redis.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
