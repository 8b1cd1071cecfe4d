package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// roomUsersKey is the Redis key format for a room's active user set.
	// Format: room:<roomID>:users
	roomUsersKey = "room:%s:users"

	// roomUsersTTL expires the set of an inactive room so abandoned rooms
	// do not accumulate keys. Refreshed on every join.
	roomUsersTTL = 2 * time.Hour
)

// Tracker records which users are currently on which room channel in Redis.
// It is advisory state for presence queries; the hub's in-memory membership
// stays the source of truth for delivery.
type Tracker struct {
	client *redis.Client
}

// NewTracker parses a Redis URL (e.g. "redis://localhost:6379/0"), connects
// and pings to verify the server is reachable.
func NewTracker(redisURL string) (*Tracker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL %q: %w", redisURL, err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Tracker{client: client}, nil
}

// Join adds a user to a room's active set and refreshes the set's TTL.
func (t *Tracker) Join(ctx context.Context, roomID, userID string) error {
	if roomID == "" || userID == "" {
		return fmt.Errorf("roomID and userID cannot be empty")
	}
	key := fmt.Sprintf(roomUsersKey, roomID)

	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, roomUsersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add user %q to room %q presence set: %w", userID, roomID, err)
	}
	return nil
}

// Leave removes a user from a room's active set. Removing a user who is
// not in the set is not an error.
func (t *Tracker) Leave(ctx context.Context, roomID, userID string) error {
	if roomID == "" || userID == "" {
		return fmt.Errorf("roomID and userID cannot be empty")
	}
	key := fmt.Sprintf(roomUsersKey, roomID)

	if err := t.client.SRem(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("failed to remove user %q from room %q presence set: %w", userID, roomID, err)
	}
	return nil
}

// ActiveUsers returns the user IDs currently recorded for a room. Returns
// an empty slice for an unknown room.
func (t *Tracker) ActiveUsers(ctx context.Context, roomID string) ([]string, error) {
	if roomID == "" {
		return nil, fmt.Errorf("roomID cannot be empty")
	}
	key := fmt.Sprintf(roomUsersKey, roomID)

	users, err := t.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence set for room %q: %w", roomID, err)
	}
	return users, nil
}

// Close releases the underlying Redis connection.
func (t *Tracker) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
