package repository

import (
	"context"
	"time"
)

// TokenType indica el propósito de un token de un solo uso o de sesión.
type TokenType string

const (
	TokenMagicLogin    TokenType = "magic_login"
	TokenRefresh       TokenType = "refresh"
	TokenInviteUser    TokenType = "invite_user"
	TokenConfirmEmail  TokenType = "confirm_email"
	TokenResetPassword TokenType = "reset_password"
)

// Token representa una credencial de un solo uso o un refresh token.
// Para TokenRefresh, Value guarda el hash SHA-256 del plaintext; para el
// resto se guarda el valor tal cual (de un solo uso y vida corta).
type Token struct {
	ID            string
	Value         string
	Type          TokenType
	RelationID    string // usuario que autentica
	EnvironmentID *string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// TokenRepository define operaciones sobre tokens persistidos.
type TokenRepository interface {
	// Create inserta el token. Retorna ErrConflict si el value colisiona
	// con un token vivo (unique violation) — el caller regenera y reintenta.
	Create(ctx context.Context, token *Token) error

	// GetByValue busca por value+type. Retorna ErrNotFound si no existe.
	// No chequea expiración: eso es del lifecycle service.
	GetByValue(ctx context.Context, value string, typ TokenType) (*Token, error)

	// Delete elimina un token por ID.
	Delete(ctx context.Context, id string) error

	// DeleteByTypeRelation elimina todos los tokens de un tipo para una
	// relación dentro de un environment. El scope por environment importa:
	// para los invites la relación es un email, que no es único entre
	// tenants. Retorna cuántos borró.
	DeleteByTypeRelation(ctx context.Context, typ TokenType, relationID, envID string) (int, error)
}
