package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/secretbox"
	"github.com/dropDatabas3/envgate/internal/session"
)

// HeaderAPIKey es el header con la public o secret key del environment.
const HeaderAPIKey = "X-Api-Key"

// IdentitySource es un check de autenticación independiente.
// Applies decide si la fuente corresponde al request (sin validar nada);
// Authenticate la valida y produce la identidad, o el rechazo.
type IdentitySource interface {
	Name() string
	Applies(r *http.Request) bool
	Authenticate(r *http.Request) (*Identity, *httperrors.AppError)
}

// RequireIdentity evalúa las fuentes EN EL ORDEN DECLARADO y usa la
// primera aplicable; las demás no se intentan (sin merge de resultados).
// Si ninguna aplica, o la aplicable rechaza, corta con el error.
func RequireIdentity(sources ...IdentitySource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, src := range sources {
				if !src.Applies(r) {
					continue
				}
				id, appErr := src.Authenticate(r)
				if appErr != nil {
					logger.From(r.Context()).Debug("identity source rejected request",
						logger.Component("authz"), logger.Op(src.Name()))
					httperrors.WriteError(w, appErr)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			httperrors.WriteError(w, httperrors.ErrUnauthorized)
		})
	}
}

// =================================================================================
// FUENTE: SESSION TOKEN (bearer)
// =================================================================================

// SessionSource autentica con Authorization: Bearer <JWT> firmado con el
// secret derivado del environment resuelto. Requiere ResolveEnvironment
// antes en la cadena.
type SessionSource struct {
	Sessions *session.Service
}

func (s *SessionSource) Name() string { return "session" }

func (s *SessionSource) Applies(r *http.Request) bool {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	return ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ")
}

func (s *SessionSource) Authenticate(r *http.Request) (*Identity, *httperrors.AppError) {
	env := GetEnvironment(r.Context())
	if env == nil {
		// Bug de composición de ruta, no del caller.
		return nil, httperrors.ErrInternalServerError.WithDetail("environment not resolved before session check")
	}

	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	raw := strings.TrimSpace(ah[len("Bearer "):])

	claims, err := s.Sessions.ParseSession(raw, env)
	if err != nil {
		return nil, httperrors.ErrUnauthorized
	}

	return &Identity{
		Kind:        IdentitySession,
		UserID:      claims.Subject,
		Claims:      claims,
		Environment: env,
	}, nil
}

// =================================================================================
// FUENTES: API KEYS (secret / public)
// =================================================================================

// SecretKeySource autentica a un backend del tenant con su secret key:
// el hash HMAC del valor presentado debe resolver a un environment.
// Un ciphertext/valor malformado es Unauthorized, nunca 500.
type SecretKeySource struct {
	Envs        repository.EnvironmentRepository
	IndexSecret string
}

func (s *SecretKeySource) Name() string { return "secret_key" }

func (s *SecretKeySource) Applies(r *http.Request) bool {
	return strings.HasPrefix(strings.TrimSpace(r.Header.Get(HeaderAPIKey)), "eg_sec_")
}

func (s *SecretKeySource) Authenticate(r *http.Request) (*Identity, *httperrors.AppError) {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))

	env, err := s.Envs.GetBySecretKeyHash(r.Context(), secretbox.Hash256(key, s.IndexSecret))
	if err != nil {
		return nil, httperrors.ErrUnauthorized
	}
	if !env.Active {
		return nil, httperrors.ErrUnauthorized
	}
	if mismatch(r, env) {
		return nil, httperrors.ErrUnauthorized
	}

	return &Identity{Kind: IdentitySecretKey, Environment: env}, nil
}

// PublicKeySource autentica a un frontend del tenant con su public key.
type PublicKeySource struct {
	Envs        repository.EnvironmentRepository
	IndexSecret string
}

func (s *PublicKeySource) Name() string { return "public_key" }

func (s *PublicKeySource) Applies(r *http.Request) bool {
	return strings.HasPrefix(strings.TrimSpace(r.Header.Get(HeaderAPIKey)), "eg_pub_")
}

func (s *PublicKeySource) Authenticate(r *http.Request) (*Identity, *httperrors.AppError) {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))

	env, err := s.Envs.GetByPublicKeyHash(r.Context(), secretbox.Hash256(key, s.IndexSecret))
	if err != nil {
		return nil, httperrors.ErrUnauthorized
	}
	if !env.Active {
		return nil, httperrors.ErrUnauthorized
	}
	if mismatch(r, env) {
		return nil, httperrors.ErrUnauthorized
	}

	return &Identity{Kind: IdentityPublicKey, Environment: env}, nil
}

// mismatch rechaza una key válida usada contra OTRO environment que el
// direccionado. Si la ruta no corre ResolveEnvironment, el header crudo
// cuenta igual como direccionamiento: mandarlo junto con la key de otro
// environment es una contradicción del caller, no algo a ignorar.
func mismatch(r *http.Request, keyEnv *repository.Environment) bool {
	if addressed := GetEnvironment(r.Context()); addressed != nil {
		return addressed.ID != keyEnv.ID
	}
	if hdr := strings.TrimSpace(r.Header.Get(HeaderEnvID)); hdr != "" {
		return hdr != keyEnv.ID
	}
	return false
}
