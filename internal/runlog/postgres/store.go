// Package postgres stores the run ledger in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/runlog"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "crawl_runs"

var (
	validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	psql           = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

// Config controls the Postgres connection pool used for ledger rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes run rows into Postgres.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ledger table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	command       TEXT NOT NULL,
	start_page    INTEGER NOT NULL,
	end_page      INTEGER NOT NULL,
	pages         INTEGER NOT NULL,
	records       INTEGER NOT NULL,
	fetches       INTEGER NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	dataset_path  TEXT NOT NULL,
	dataset_hash  TEXT NOT NULL,
	blob_uri      TEXT NOT NULL,
	error_message TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordRun inserts one run row. Re-recording the same run id is a no-op.
func (s *Store) RecordRun(ctx context.Context, run runlog.Run) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run ledger is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	var errMsg *string
	if run.Error != "" {
		errMsg = &run.Error
	}
	query, args, err := psql.Insert(s.table).
		Columns(
			"id",
			"command",
			"start_page",
			"end_page",
			"pages",
			"records",
			"fetches",
			"started_at",
			"finished_at",
			"dataset_path",
			"dataset_hash",
			"blob_uri",
			"error_message",
		).
		Values(
			run.ID,
			run.Command,
			run.StartPage,
			run.EndPage,
			run.Pages,
			run.Records,
			run.Fetches,
			run.StartedAt,
			run.FinishedAt,
			run.DatasetPath,
			run.DatasetHash,
			run.BlobURI,
			errMsg,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
