package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// RequireStaff valida que la sesión autenticada sea de staff de plataforma.
// Debe ir después de RequireIdentity con SessionSource: una sesión válida
// sin el flag staff es 403, no 401.
func RequireStaff() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil || id.Kind != IdentitySession || id.Claims == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !id.Claims.Staff {
				logger.From(r.Context()).Info("non-staff session on staff-only route",
					logger.UserID(id.UserID))
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
