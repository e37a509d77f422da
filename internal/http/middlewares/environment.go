package middlewares

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// HeaderEnvID es el header con el que los callers machine identifican
// al environment, junto con exactamente una de las dos keys.
const HeaderEnvID = "X-Env-Id"

// ResolveEnvironment carga el environment direccionado (header X-Env-Id o
// URL param {envID}) y lo inyecta en el contexto. Rechaza inexistentes e
// inactivos con Unauthorized: en paths de autenticación no se distingue
// "no existe" de "credencial inválida".
func ResolveEnvironment(envs repository.EnvironmentRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			envID := strings.TrimSpace(r.Header.Get(HeaderEnvID))
			if envID == "" {
				envID = chi.URLParam(r, "envID")
			}
			if envID == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			env, err := envs.GetByID(ctx, envID)
			if err != nil {
				logger.From(ctx).Debug("environment not found", logger.EnvID(envID))
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !env.Active {
				logger.From(ctx).Info("inactive environment rejected", logger.EnvID(envID))
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithEnvironment(ctx, env)))
		})
	}
}

// ResolveTargetEnvironment carga el environment {envID} de la URL en rutas
// admin. El environment de la sesión del caller y el operado son distintos:
// este middleware resuelve el segundo. Inexistente → NotFound.
func ResolveTargetEnvironment(envs repository.EnvironmentRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			envID := chi.URLParam(r, "envID")
			if envID == "" {
				httperrors.WriteError(w, httperrors.ErrNotFound)
				return
			}
			env, err := envs.GetByID(ctx, envID)
			if err != nil {
				logger.From(ctx).Debug("target environment not found", logger.EnvID(envID))
				httperrors.WriteError(w, httperrors.ErrNotFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTargetEnvironment(ctx, env)))
		})
	}
}
