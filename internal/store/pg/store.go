// Package pg implementa los repositorios del dominio sobre PostgreSQL.
// Usa pgxpool directamente.
package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configuración del pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store agrupa los repositorios PostgreSQL sobre un único pool.
type Store struct {
	pool *pgxpool.Pool

	Environments *EnvironmentRepo
	Users        *UserRepo
	Tokens       *TokenRepo
	Domains      *DomainRepo
}

// Connect abre el pool y verifica la conexión.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	} else {
		poolCfg.MinConns = 2
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &Store{
		pool:         pool,
		Environments: &EnvironmentRepo{pool: pool},
		Users:        &UserRepo{pool: pool},
		Tokens:       &TokenRepo{pool: pool},
		Domains:      &DomainRepo{pool: pool},
	}, nil
}

// Ping verifica la conexión (healthcheck).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ApplyMigrations ejecuta en orden lexicográfico los .sql embebidos.
// Cada archivo corre en su propia transacción.
func (s *Store) ApplyMigrations(ctx context.Context, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("pg: read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("pg: begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("pg: commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Close cierra el pool.
func (s *Store) Close() {
	s.pool.Close()
}

// isUniqueViolation detecta el error 23505 de PostgreSQL.
// Los loops generar->insertar->reintentar dependen de esto: la unicidad
// la garantiza el unique index, no un pre-check (evita el TOCTOU).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
