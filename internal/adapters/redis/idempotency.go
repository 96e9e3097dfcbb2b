package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency keeps the serialized outcome of a completed reserve call,
// keyed by the caller's Idempotency-Key header. A retried request is
// answered from here instead of running the reservation flow again.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// StoredResponse is the replayable part of a response: the status code
// and the exact body bytes that were sent the first time.
type StoredResponse struct {
	Status int    `json:"status"`
	Result []byte `json:"result"`
}

func idempKey(key string) string {
	return "replay:" + key
}

// Get returns the stored response for key, or nil when the key was never
// completed (a miss is not an error).
func (i *Idempotency) Get(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := i.client.Get(ctx, idempKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, idempKey(key), data, ttl).Err()
}
