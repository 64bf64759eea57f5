// Package redisutils builds the shared redis client.
package redisutils

import (
	"github.com/redis/go-redis/v9"

	"github.com/thehypotheticalgame/quiz-backend/internal/config"
)

// NewClient returns a client for the configured redis. Reachability is not
// checked here: the server starts with multiplayer disabled and every room
// command re-checks availability, so redis may come and go without taking
// the process down.
func NewClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
		PoolSize: 20,
	})
}
