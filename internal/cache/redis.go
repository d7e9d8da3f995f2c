// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup;
// it stays nil when the service runs without the historian queue.
var Rdb *redis.Client

// DefaultQueueName is the Redis list the historian service consumes game
// results from.
var DefaultQueueName = "avalon_results"

// GameResultRecord is one player's outcome of one finished game, as queued
// for the historian.
type GameResultRecord struct {
	SessionID uuid.UUID `json:"session_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Alignment string    `json:"alignment"`
	Won       bool      `json:"won"`
	Timestamp int64     `json:"timestamp"`
}

// ConnectRedis initializes the global client from REDIS_ADDR / REDIS_DB.
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishGameResult serializes the record and pushes it onto the queue. The
// push is a quick network send; callers treat failure as recoverable.
func PublishGameResult(ctx context.Context, record GameResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameResultRecord: %w", err)
	}

	queueName := getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
