package middlewares

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestID propaga el X-Request-ID entrante o genera uno nuevo, lo refleja
// en la respuesta y deja en el contexto un logger con el campo ya anotado.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if rid == "" {
				var b [16]byte
				_, _ = rand.Read(b[:])
				rid = hex.EncodeToString(b[:])
			}
			w.Header().Set(HeaderRequestID, rid)

			l := logger.With(logger.RequestID(rid))
			ctx := logger.ToContext(r.Context(), l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
