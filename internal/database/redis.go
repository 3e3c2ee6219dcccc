package database

import (
	"fmt"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/aria/internal/config"
)

// NewRedis connects to the hand-off queue. An empty address means the queue
// is disabled and a nil client is returned.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
