package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"wave-ticketing/internal/models"
)

const keyPrefix = "availability:"

// AvailabilityCache is a read-through cache of availability snapshots.
// The database stays authoritative; entries only shortcut reads.
type AvailabilityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{Client: client, TTL: ttl}
}

func key(eventID string) string {
	return keyPrefix + eventID
}

// Get reports false on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, eventID string) (*models.AvailabilitySnapshot, bool, error) {
	raw, err := c.Client.Get(ctx, key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", eventID, err)
	}

	var snap models.AvailabilitySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// a corrupt entry is treated as a miss and dropped
		c.Client.Del(ctx, key(eventID))
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, snap models.AvailabilitySnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(snap.EventID), raw, c.TTL).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	return c.Client.Del(ctx, key(eventID)).Err()
}
