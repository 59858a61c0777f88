package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-meals/internal/models"
)

const snapshotTTL = 60 * time.Second

// RedisCache keeps rebuilt snapshots in Redis for a short TTL. Entries are
// versioned with the snapshot's Seq so a slow rebuild cannot clobber the
// result of a newer one.
type RedisCache struct {
	Client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

func snapshotKey(restaurantID, date string) string {
	return "dashboard_snapshot:" + restaurantID + ":" + date
}

func (c *RedisCache) Get(ctx context.Context, restaurantID, date string) (*models.Snapshot, error) {
	raw, err := c.Client.Get(ctx, snapshotKey(restaurantID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) Put(ctx context.Context, snap *models.Snapshot) error {
	existing, err := c.Get(ctx, snap.RestaurantID, snap.Date)
	if err == nil && existing != nil && existing.Seq > snap.Seq {
		// A newer rebuild already landed.
		return nil
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, snapshotKey(snap.RestaurantID, snap.Date), raw, snapshotTTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, restaurantID, date string) error {
	return c.Client.Del(ctx, snapshotKey(restaurantID, date)).Err()
}
