package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/config"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool when DSN is provided.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping database connection")
		return &Postgres{Pool: nil}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies the pool is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres not configured")
	}
	return p.Pool.Ping(ctx)
}

// PoolHandle returns the underlying pgx pool.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}

// PostgresKV stores settings documents as JSONB rows keyed by
// (kind, workspace_id).
type PostgresKV struct {
	pool *pgxpool.Pool
}

// NewPostgresKV wraps a pool as a KV store.
func NewPostgresKV(pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{pool: pool}
}

func (s *PostgresKV) Load(ctx context.Context, kind, workspaceID string) ([]byte, error) {
	const query = `SELECT doc FROM settings_documents WHERE kind=$1 AND workspace_id=$2`
	var doc []byte
	if err := s.pool.QueryRow(ctx, query, kind, workspaceID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresKV) Save(ctx context.Context, kind, workspaceID string, doc []byte) error {
	const query = `
        INSERT INTO settings_documents (kind, workspace_id, doc, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (kind, workspace_id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=NOW()`
	_, err := s.pool.Exec(ctx, query, kind, workspaceID, doc)
	return err
}

func (s *PostgresKV) List(ctx context.Context, kind string) (map[string][]byte, error) {
	const query = `SELECT workspace_id, doc FROM settings_documents WHERE kind=$1`
	rows, err := s.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]byte{}
	for rows.Next() {
		var workspaceID string
		var doc []byte
		if err := rows.Scan(&workspaceID, &doc); err != nil {
			return nil, err
		}
		out[workspaceID] = doc
	}
	return out, rows.Err()
}
