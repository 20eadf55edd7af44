package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a Recent tier shared between assistant processes. The list
// is kept newest-first and capped with LTRIM, which gives the same eviction
// order as Window.
type RedisWindow struct {
	client   *redis.Client
	key      string
	capacity int
}

func NewRedisWindow(ctx context.Context, url, key string, capacity int) (*RedisWindow, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if key == "" {
		key = "jarvis:recent"
	}
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}

	return &RedisWindow{client: client, key: key, capacity: capacity}, nil
}

func (r *RedisWindow) Append(ctx context.Context, it Interaction) error {
	if it.At.IsZero() {
		it.At = time.Now()
	}

	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push interaction: %w", err)
	}
	return nil
}

// Recent returns up to n entries, oldest first.
func (r *RedisWindow) Recent(ctx context.Context, n int) ([]Interaction, error) {
	if n <= 0 || n > r.capacity {
		n = r.capacity
	}

	vals, err := r.client.LRange(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read interactions: %w", err)
	}

	out := make([]Interaction, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		var it Interaction
		if err := json.Unmarshal([]byte(vals[i]), &it); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *RedisWindow) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisWindow) Close() error {
	return r.client.Close()
}
