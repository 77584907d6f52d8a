package cron

import (
	"context"
	"fmt"
	"time"

	"reservo/config"
	"reservo/services/tasks"
	"reservo/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const maxStartAttempts = 5

// QueueRedisOpt is the asynq connection for the relay queue.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewRelayMux routes relay tasks to h.
func NewRelayMux(h asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeReservationWebhook, h)
	return mux
}

// InitRelayWorker starts the asynq server that drains the webhook queue.
// The caller owns Shutdown on the returned server.
func InitRelayWorker(ctx context.Context, h asynq.Handler, concurrency int) (*asynq.Server, error) {
	logger := utils.GetLogger()
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.RelayQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Warn("relay worker: task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)
	mux := NewRelayMux(h)

	go monitorRedisConnection(ctx)

	logger.Info("relay worker: starting")
	var err error
	for attempt := 1; attempt <= maxStartAttempts; attempt++ {
		if err = srv.Start(mux); err == nil {
			return srv, nil
		}
		logger.Warn("relay worker: start failed",
			zap.Int("attempt", attempt), zap.Int("max", maxStartAttempts), zap.Error(err))
		if attempt == maxStartAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt*2) * time.Second):
		}
	}
	return nil, fmt.Errorf("relay worker: giving up after %d attempts: %w", maxStartAttempts, err)
}

// monitorRedisConnection pings the queue database to surface failures at runtime.
func monitorRedisConnection(ctx context.Context) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil {
				utils.GetLogger().Warn("relay worker: redis connection lost", zap.Error(err))
			}
		}
	}
}
