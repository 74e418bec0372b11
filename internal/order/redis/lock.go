package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PurchaseGuard keeps one purchase per user and event in flight. A second
// submission while the first is still committing is turned away instead of
// racing it for the same seats.
type PurchaseGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewPurchaseGuard(client *redis.Client, ttl time.Duration) *PurchaseGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PurchaseGuard{Client: client, TTL: ttl}
}

func guardKey(userID, eventID string) string {
	return fmt.Sprintf("purchase_lock:%s:%s", userID, eventID)
}

// Acquire takes the guard for token. It reports false when another
// purchase holds it.
func (g *PurchaseGuard) Acquire(ctx context.Context, userID, eventID, token string) (bool, error) {
	return g.Client.SetNX(ctx, guardKey(userID, eventID), token, g.TTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release drops the guard if token still owns it. The compare and the
// delete run as one script.
func (g *PurchaseGuard) Release(ctx context.Context, userID, eventID, token string) error {
	return releaseScript.Run(ctx, g.Client, []string{guardKey(userID, eventID)}, token).Err()
}
