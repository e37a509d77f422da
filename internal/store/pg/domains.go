package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
)

// DomainRepo implementa repository.DomainRepository.
type DomainRepo struct {
	pool *pgxpool.Pool
}

func (r *DomainRepo) Create(ctx context.Context, d *repository.EmailDomain) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_domain (id, environment_id, domain, status, created_at)
		VALUES ($1,$2,$3,$4,NOW())`,
		d.ID, d.EnvironmentID, d.Domain, string(d.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: insert email domain: %w", err)
	}
	return nil
}

func (r *DomainRepo) ListPending(ctx context.Context) ([]repository.EmailDomain, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, environment_id, domain, status, attempts, last_checked_at, created_at
		FROM email_domain WHERE status = $1
		ORDER BY created_at`,
		string(repository.DomainPending))
	if err != nil {
		return nil, fmt.Errorf("pg: list pending domains: %w", err)
	}
	defer rows.Close()

	var out []repository.EmailDomain
	for rows.Next() {
		var d repository.EmailDomain
		var status string
		if err := rows.Scan(&d.ID, &d.EnvironmentID, &d.Domain, &status, &d.Attempts, &d.LastCheckedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan email domain: %w", err)
		}
		d.Status = repository.DomainStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DomainRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_domain WHERE status = $1`,
		string(repository.DomainPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pg: count pending domains: %w", err)
	}
	return n, nil
}

func (r *DomainRepo) SetStatus(ctx context.Context, id string, status repository.DomainStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_domain SET status = $2, last_checked_at = NOW()
		WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("pg: set domain status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *DomainRepo) RecordFailure(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE email_domain SET attempts = attempts + 1, last_checked_at = NOW()
		WHERE id = $1
		RETURNING attempts`,
		id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("pg: record domain failure: %w", err)
	}
	return attempts, nil
}
