package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/redis/go-redis/v9"
)

const metadataKeyPrefix = "loopfeed:metadata:"

// MetadataCache stores link metadata in Redis keyed by cleaned URL.
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return client, nil
}

func NewMetadataCache(client *redis.Client, ttl time.Duration) *MetadataCache {
	return &MetadataCache{client: client, ttl: ttl}
}

// Get returns the cached metadata for url. ok is false on a miss.
func (c *MetadataCache) Get(ctx context.Context, url string) (meta *model.EmbedMetadata, ok bool, err error) {
	b, err := c.client.Get(ctx, metadataKeyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata cache: %w", err)
	}

	meta = &model.EmbedMetadata{}
	err = json.Unmarshal(b, meta)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached metadata: %w", err)
	}
	return meta, true, nil
}

func (c *MetadataCache) Set(ctx context.Context, url string, meta *model.EmbedMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = c.client.Set(ctx, metadataKeyPrefix+url, b, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}
