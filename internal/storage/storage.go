// Package storage opens the record store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/storage/memory"
	"github.com/JonMunkholm/stockroom/internal/storage/postgres"
)

// Handle is an open store plus whatever must be released with it.
type Handle struct {
	Store core.Store

	pg   *postgres.Store
	pool *pgxpool.Pool
}

// Open connects the configured driver. For postgres it builds the pool from
// the DB_* settings and pings before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Handle, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return &Handle{Store: memory.New()}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("open storage: unknown driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Handle, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to, never the credentials
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "max_conns", cfg.MaxConns)
	} else {
		slog.Info("connected to database")
	}

	pg := postgres.New(pool)
	return &Handle{Store: pg, pg: pg, pool: pool}, nil
}

// EnsureSchema creates or extends the tables for every registered entity
// plus the audit log. The memory store needs no schema.
func (h *Handle) EnsureSchema(ctx context.Context) error {
	if h.pg == nil {
		return nil
	}
	if err := h.pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("schema up to date", "entities", core.EntityCount())
	return nil
}

// Close releases the connection pool, if any.
func (h *Handle) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}
