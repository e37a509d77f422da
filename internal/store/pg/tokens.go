package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
)

// TokenRepo implementa repository.TokenRepository.
type TokenRepo struct {
	pool *pgxpool.Pool
}

func (r *TokenRepo) Create(ctx context.Context, t *repository.Token) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO token (id, value, type, relation_id, environment_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		t.ID, t.Value, string(t.Type), t.RelationID, t.EnvironmentID, t.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: insert token: %w", err)
	}
	return nil
}

func (r *TokenRepo) GetByValue(ctx context.Context, value string, typ repository.TokenType) (*repository.Token, error) {
	var t repository.Token
	var typStr string

	err := r.pool.QueryRow(ctx, `
		SELECT id, value, type, relation_id, environment_id, expires_at, created_at
		FROM token WHERE value = $1 AND type = $2`,
		value, string(typ)).Scan(
		&t.ID, &t.Value, &typStr, &t.RelationID, &t.EnvironmentID, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get token: %w", err)
	}
	t.Type = repository.TokenType(typStr)
	return &t, nil
}

func (r *TokenRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM token WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TokenRepo) DeleteByTypeRelation(ctx context.Context, typ repository.TokenType, relationID, envID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM token WHERE type = $1 AND relation_id = $2 AND environment_id = $3`,
		string(typ), relationID, envID)
	if err != nil {
		return 0, fmt.Errorf("pg: delete tokens by relation: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
