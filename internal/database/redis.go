package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rayan1605/MainChatApplication/internal/config"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// NewRedis connects the client shared by the message cache and the job
// queues. Unlike rate limiting, the chat pipeline cannot run without Redis,
// so a failed ping is an error.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis successfully")
	return rdb, nil
}
