package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
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

// GetMovie returns the cached catalog entry, or (nil, nil) on a miss.
func (c *Cache) GetMovie(ctx context.Context, movieID string) (*domain.MovieRef, error) {
	val, err := c.client.Get(ctx, "movie:"+movieID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var movie domain.MovieRef
	if err := json.Unmarshal(val, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (c *Cache) SetMovie(ctx context.Context, movie domain.MovieRef, ttl time.Duration) error {
	data, err := json.Marshal(movie)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "movie:"+movie.ID, data, ttl).Err()
}

// InvalidateMovie is the only way a cached entry disappears before its
// TTL; an explicit re-fetch goes through here first.
func (c *Cache) InvalidateMovie(ctx context.Context, movieID string) error {
	return c.client.Del(ctx, "movie:"+movieID).Err()
}
