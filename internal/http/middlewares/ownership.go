package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// RequireEnvironmentOwner valida que el usuario autenticado sea dueño del
// proyecto al que pertenece el environment direccionado. Asume identidad
// de sesión y environment ya resueltos por checks anteriores de la cadena.
//
// Un no-dueño recibe NotFound, no Forbidden: el caller no autorizado no
// debe poder confirmar que el environment existe. Staff pasa siempre.
func RequireEnvironmentOwner(envs repository.EnvironmentRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id := GetIdentity(ctx)
			if id == nil || id.Kind != IdentitySession || id.UserID == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			env := AddressedEnvironment(ctx)
			if env == nil {
				httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("environment not resolved before ownership check"))
				return
			}

			if id.Claims != nil && id.Claims.Staff {
				next.ServeHTTP(w, r)
				return
			}

			owned, err := envs.IsOwnedBy(ctx, env.ID, id.UserID)
			if err != nil {
				logger.From(ctx).Error("ownership check failed", logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
				return
			}
			if !owned {
				logger.From(ctx).Info("ownership denied",
					logger.EnvID(env.ID), logger.UserID(id.UserID))
				httperrors.WriteError(w, httperrors.ErrNotFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
