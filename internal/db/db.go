package db

import (
	"context"
	"fmt"
	"time"

	"venuebot/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	*pgxpool.Pool
}

func New(ctx context.Context, dbCfg config.DatabaseConfig) (*DB, error) {
	// Create a configuration object
	cfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	cfg.MaxConns = dbCfg.MaxConns
	cfg.MinConns = 2
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return &DB{pool}, nil
}

// Migrate runs a schema script in a single transaction.
func (db *DB) Migrate(ctx context.Context, script string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("error executing migration: %w", err)
	}
	return tx.Commit(ctx)
}

// insertID runs an INSERT ... RETURNING id.
func (db *DB) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// execOne fails when no row was affected.
func (db *DB) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
