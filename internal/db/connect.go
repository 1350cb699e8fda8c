package db

import (
	"context"

	"match_coordinator/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the audit-persistence pool. The coordinator runs
// without Postgres; callers pass an empty dsn to opt out.
func Connect(dsn string) *pgxpool.Pool {
	if dsn == "" {
		logger.Info("database disabled; audit trails kept in memory only")
		return nil
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return pool
}
