// internal/common/database/redis.go
// Redis connection helper

package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewRedisClientFromURL creates a Redis client from URL and verifies the connection
func NewRedisClientFromURL(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
