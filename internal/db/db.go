// Package db builds and verifies the two connection handles cmd/worker and
// cmd/scheduler share: a pgxpool.Pool for the Postgres-backed stores (C7/C8)
// and a go-redis Client for the best-effort pub/sub notifications (§11).
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string, log *logrus.Entry) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if log != nil {
		stat := pool.Stat()
		log.WithFields(logrus.Fields{"max_conns": stat.MaxConns()}).Info("postgres connected")
	}
	return pool, nil
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string, log *logrus.Entry) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if log != nil {
		log.Info("redis connected")
	}
	return rdb, nil
}
