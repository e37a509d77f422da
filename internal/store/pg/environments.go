package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
)

// EnvironmentRepo implementa repository.EnvironmentRepository.
type EnvironmentRepo struct {
	pool *pgxpool.Pool
}

const envColumns = `id, project_id, name, active, signup_enabled,
	public_key_hash, public_key_enc, secret_key_hash, secret_key_enc, signing_key_enc,
	session_ttl_seconds, refresh_ttl_seconds, created_at, updated_at`

func (r *EnvironmentRepo) Create(ctx context.Context, env *repository.Environment) error {
	var refreshSecs *int64
	if env.RefreshTTL != nil {
		v := int64(env.RefreshTTL.Seconds())
		refreshSecs = &v
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO environment
			(id, project_id, name, active, signup_enabled,
			 public_key_hash, public_key_enc, secret_key_hash, secret_key_enc, signing_key_enc,
			 session_ttl_seconds, refresh_ttl_seconds, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())`,
		env.ID, env.ProjectID, env.Name, env.Active, env.SignUpEnabled,
		env.PublicKeyHash, env.PublicKeyEnc, env.SecretKeyHash, env.SecretKeyEnc, env.SigningKeyEnc,
		int64(env.SessionTTL.Seconds()), refreshSecs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: insert environment: %w", err)
	}
	return nil
}

func (r *EnvironmentRepo) GetByID(ctx context.Context, id string) (*repository.Environment, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *EnvironmentRepo) GetByPublicKeyHash(ctx context.Context, hash string) (*repository.Environment, error) {
	return r.getBy(ctx, "public_key_hash = $1", hash)
}

func (r *EnvironmentRepo) GetBySecretKeyHash(ctx context.Context, hash string) (*repository.Environment, error) {
	return r.getBy(ctx, "secret_key_hash = $1", hash)
}

func (r *EnvironmentRepo) getBy(ctx context.Context, where string, arg any) (*repository.Environment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+envColumns+` FROM environment WHERE `+where, arg)
	return scanEnvironment(row)
}

func scanEnvironment(row pgx.Row) (*repository.Environment, error) {
	var env repository.Environment
	var sessionSecs int64
	var refreshSecs *int64

	err := row.Scan(
		&env.ID, &env.ProjectID, &env.Name, &env.Active, &env.SignUpEnabled,
		&env.PublicKeyHash, &env.PublicKeyEnc, &env.SecretKeyHash, &env.SecretKeyEnc, &env.SigningKeyEnc,
		&sessionSecs, &refreshSecs, &env.CreatedAt, &env.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: scan environment: %w", err)
	}

	env.SessionTTL = time.Duration(sessionSecs) * time.Second
	if refreshSecs != nil {
		d := time.Duration(*refreshSecs) * time.Second
		env.RefreshTTL = &d
	}
	return &env, nil
}

// SwapKey reemplaza hash+ciphertext de una clave en un solo UPDATE:
// el swap es atómico, nunca se observa hash nuevo con ciphertext viejo.
func (r *EnvironmentRepo) SwapKey(ctx context.Context, envID string, swap repository.KeySwap) error {
	var tag pgconn.CommandTag
	var err error

	switch swap.Kind {
	case repository.KeyPublic:
		tag, err = r.exec(ctx, `
			UPDATE environment SET public_key_hash = $2, public_key_enc = $3, updated_at = NOW()
			WHERE id = $1`, envID, swap.Hash, swap.Enc)
	case repository.KeySecret:
		tag, err = r.exec(ctx, `
			UPDATE environment SET secret_key_hash = $2, secret_key_enc = $3, updated_at = NOW()
			WHERE id = $1`, envID, swap.Hash, swap.Enc)
	case repository.KeySigning:
		// La signing key no tiene hash de lookup: solo ciphertext.
		tag, err = r.exec(ctx, `
			UPDATE environment SET signing_key_enc = $2, updated_at = NOW()
			WHERE id = $1`, envID, swap.Enc)
	default:
		return repository.ErrInvalidInput
	}

	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: swap key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EnvironmentRepo) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return r.pool.Exec(ctx, sql, args...)
}

func (r *EnvironmentRepo) IsOwnedBy(ctx context.Context, envID, userID string) (bool, error) {
	var owned bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM environment e
			JOIN project p ON p.id = e.project_id
			WHERE e.id = $1 AND p.owner_user_id = $2
		)`, envID, userID).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("pg: ownership check: %w", err)
	}
	return owned, nil
}

func (r *EnvironmentRepo) Delete(ctx context.Context, id string) error {
	// ON DELETE CASCADE en token.environment_id y app_user.environment_id
	tag, err := r.pool.Exec(ctx, `DELETE FROM environment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete environment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
