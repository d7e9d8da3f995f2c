// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DB is the shared connection pool. Connect it once at application startup;
// it stays nil when the service runs without persistence.
var DB *pgxpool.Pool

// Connect opens the pool from POSTGRES_USER / POSTGRES_PASSWORD / PG_HOST /
// PG_PORT / PG_DATABASE and verifies it with a ping.
func Connect() error {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	log.Infof("connected to database at %s:%s", os.Getenv("PG_HOST"), os.Getenv("PG_PORT"))
	return nil
}
