// Package tokens implementa el ciclo de vida de tokens de un solo uso y
// de refresh: emisión, consumo e invalidación masiva.
//
// Máquina de estados de un token de un solo uso:
//
//	Issued -> Consumed | Expired | Superseded
//
// Superseded: emitir un token nuevo del mismo tipo para la misma relación
// borra los anteriores (magic link, reset password, etc). Refresh es la
// excepción intencional: múltiples sesiones concurrentes por usuario.
package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/metrics"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	sectoken "github.com/dropDatabas3/envgate/internal/security/token"
)

const tokenBytes = 32 // largo fijo del plaintext

// Service emite, consume e invalida tokens persistidos.
type Service struct {
	Repo repository.TokenRepository
}

// storedValue devuelve lo que se persiste para un token.
// Refresh se guarda hasheado (SHA-256): una DB filtrada nunca entrega
// refresh tokens usables. Los de un solo uso se guardan tal cual, son de
// vida corta y se borran al consumirse.
func storedValue(plaintext string, typ repository.TokenType) string {
	if typ == repository.TokenRefresh {
		return sectoken.SHA256Base64URL(plaintext)
	}
	return plaintext
}

// Issue genera un token de largo fijo, lo persiste y devuelve el plaintext.
// Reintenta la generación mientras el insert choque con el unique index de
// value (la probabilidad de colisión real es despreciable, el loop existe
// por corrección, no por expectativa).
func (s *Service) Issue(ctx context.Context, typ repository.TokenType, relationID string, ttl time.Duration, envID *string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("tokens"),
		logger.Op("Issue"), logger.TokenType(string(typ)), logger.UserID(relationID))

	// Los de un solo uso superseden a los anteriores del mismo tipo,
	// dentro del environment: la relación de un invite es un email y el
	// mismo email existe en varios tenants. Refresh no: multi-sesión.
	if typ != repository.TokenRefresh && envID != nil {
		if n, err := s.Repo.DeleteByTypeRelation(ctx, typ, relationID, *envID); err != nil {
			return "", err
		} else if n > 0 {
			log.Debug("superseded previous tokens", logger.Count(n))
		}
	}

	for attempt := 1; ; attempt++ {
		plain, err := sectoken.GenerateOpaqueToken(tokenBytes)
		if err != nil {
			return "", err
		}

		err = s.Repo.Create(ctx, &repository.Token{
			ID:            uuid.NewString(),
			Value:         storedValue(plain, typ),
			Type:          typ,
			RelationID:    relationID,
			EnvironmentID: envID,
			ExpiresAt:     time.Now().UTC().Add(ttl),
		})
		if err == nil {
			metrics.TokensIssued.WithLabelValues(string(typ)).Inc()
			return plain, nil
		}
		if !repository.IsConflict(err) {
			return "", err
		}

		metrics.GenRetries.WithLabelValues("token").Inc()
		log.Warn("token value collision, regenerating", logger.Attempt(attempt))
	}
}

// Consume busca el token por valor y chequea expiración ANTES de darlo por
// válido. Un token expirado se borra y se reporta ErrNotFound: para el
// caller es indistinguible de uno inexistente (no filtra existencia).
// No borra tokens válidos: eso lo decide el caller (los de un solo uso se
// borran inmediatamente después de usarse).
func (s *Service) Consume(ctx context.Context, plaintext string, typ repository.TokenType) (*repository.Token, error) {
	t, err := s.Repo.GetByValue(ctx, storedValue(plaintext, typ), typ)
	if err != nil {
		return nil, err
	}

	if !time.Now().UTC().Before(t.ExpiresAt) {
		// Best effort: si el delete falla igual reportamos not found.
		_ = s.Repo.Delete(ctx, t.ID)
		return nil, repository.ErrNotFound
	}
	return t, nil
}

// Delete elimina un token consumido.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// InvalidateAll revoca todos los tokens de un tipo para una relación
// dentro de un environment (logout, cambio de password).
func (s *Service) InvalidateAll(ctx context.Context, typ repository.TokenType, relationID, envID string) (int, error) {
	return s.Repo.DeleteByTypeRelation(ctx, typ, relationID, envID)
}
