package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
)

// UserRepo implementa repository.UserRepository.
type UserRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `u.id, u.environment_id, u.email, u.full_name, u.password_hash,
	u.email_verified, u.active, u.staff, u.organization_id, o.name, u.created_at, u.updated_at`

const userJoin = `FROM app_user u LEFT JOIN organization o ON o.id = u.organization_id`

func (r *UserRepo) Create(ctx context.Context, user *repository.User) error {
	var orgID *string
	if user.Organization != nil {
		orgID = &user.Organization.ID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO app_user
			(id, environment_id, email, full_name, password_hash, email_verified, active, staff, organization_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())`,
		user.ID, user.EnvironmentID, user.Email, user.FullName, user.PasswordHash,
		user.EmailVerified, user.Active, user.Staff, orgID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, envID, id string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` `+userJoin+` WHERE u.environment_id = $1 AND u.id = $2`,
		envID, id)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, envID, email string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` `+userJoin+` WHERE u.environment_id = $1 AND u.email = $2`,
		envID, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var orgID, orgName *string

	err := row.Scan(
		&u.ID, &u.EnvironmentID, &u.Email, &u.FullName, &u.PasswordHash,
		&u.EmailVerified, &u.Active, &u.Staff, &orgID, &orgName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: scan user: %w", err)
	}

	if orgID != nil {
		u.Organization = &repository.OrganizationSummary{ID: *orgID}
		if orgName != nil {
			u.Organization.Name = *orgName
		}
	}
	return &u, nil
}

func (r *UserRepo) SetPasswordHash(ctx context.Context, envID, id, phc string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE app_user SET password_hash = $3, updated_at = NOW()
		WHERE environment_id = $1 AND id = $2`,
		envID, id, phc)
	if err != nil {
		return fmt.Errorf("pg: set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetEmailVerified(ctx context.Context, envID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE app_user SET email_verified = TRUE, updated_at = NOW()
		WHERE environment_id = $1 AND id = $2`,
		envID, id)
	if err != nil {
		return fmt.Errorf("pg: set email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
