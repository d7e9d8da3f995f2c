// cmd/historian/main.go is an asynchronous historian service that pops game
// result records from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/cache"
	"github.com/jason-s-yu/avalon/internal/database"
)

// HistorianService encapsulates the Redis + DB logic for archiving finished
// game results in batches.
type HistorianService struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []cache.GameResultRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		DB:   getEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		queueName:   getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.GameResultRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database, starts the queue reader, and blocks until
// interrupted. Remaining batched records are flushed on shutdown.
func (hs *HistorianService) Run() {
	if err := database.Connect(); err != nil {
		log.Fatalf("historian requires the database: %v", err)
	}
	defer database.DB.Close()

	go hs.readRedisLoop()

	log.Infof("avalon-historian started, consuming %q", hs.queueName)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs

	hs.cancelFn()
	hs.flushBatchToDB()
	log.Info("avalon-historian shutting down")
}

// readRedisLoop continuously uses BLPop to retrieve result records from the
// queue, batching them and flushing on size or on a timer.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && hs.ctx.Err() == nil {
					log.Errorf("BLPop: %v", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.GameResultRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Warnf("invalid result record: %v", err)
				continue
			}
			hs.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (hs *HistorianService) appendToBatch(record cache.GameResultRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushLocked()
	}
}

// flushBatchToDB flushes the current batch in a single transaction.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushLocked()
}

func (hs *HistorianService) flushLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]cache.GameResultRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertGameResultTx(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("flushBatchToDB: %v", err)
	} else {
		log.Infof("flushed %d result records to DB", len(batchCopy))
	}
}

// insertGameResultTx archives a single per-player result row.
func insertGameResultTx(ctx context.Context, tx pgx.Tx, rec cache.GameResultRecord) error {
	q := `
		INSERT INTO game_results (session_id, username, role, alignment, won, finished_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6::double precision / 1000))
	`
	_, err := tx.Exec(ctx, q,
		rec.SessionID, rec.Username, rec.Role, rec.Alignment, rec.Won, rec.Timestamp,
	)
	return err
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

func main() {
	NewHistorianService().Run()
}
