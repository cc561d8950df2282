package infrastructure

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"waveline.io/courier/internal/config"
	"waveline.io/courier/internal/pkg/logger"
)

// NewRedisClient connects to Redis and verifies the connection.
// Redis holds the delivery cycle leader lock and cursor.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", cfg.Addr))
	return client, nil
}
