package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetPackage returns false on a miss; cache errors degrade to a miss so the
// catalog read path never fails on Redis.
func (c *Cache) GetPackage(ctx context.Context, id string, dst interface{}) (bool, error) {
	val, err := c.client.Get(ctx, "pkg:"+id).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetPackage(ctx context.Context, id string, pkg interface{}, ttl time.Duration) error {
	data, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "pkg:"+id, data, ttl).Err()
}

func (c *Cache) InvalidatePackage(ctx context.Context, id string) error {
	return c.client.Del(ctx, "pkg:"+id).Err()
}
