// Package session implementa el orquestador de autenticación: combina
// credenciales (password, magic link, refresh token) con el lifecycle de
// tokens y la derivación de claves para emitir session tokens firmados
// por environment.
//
// Todos los fallos de autenticación colapsan en ErrUnauthorized hacia el
// caller: el servicio no distingue "usuario no existe" de "password
// incorrecto" en su resultado (evita enumeración de cuentas), aunque sí
// loguea la distinción internamente.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/envgate/internal/cache"
	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/metrics"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/password"
	"github.com/dropDatabas3/envgate/internal/tokens"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized es el único error que las rutas de autenticación
// devuelven ante credenciales inválidas, usuario inexistente, token
// expirado o uso cross-environment.
var ErrUnauthorized = errors.New("session: unauthorized")

// SecretResolver deriva el secret de firma de session tokens de un
// environment. La estrategia de combinación (signing key sola, o signing
// key + app secret global) es swappeable sin tocar los call sites.
type SecretResolver interface {
	Resolve(env *repository.Environment) ([]byte, error)
}

// SessionTokens es el resultado de una autenticación exitosa.
// RefreshToken queda vacío si el environment no configura refresh TTL.
type SessionTokens struct {
	Token            string
	TokenExpiresAt   time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service orquesta las rutas de autenticación de un environment.
type Service struct {
	Users   repository.UserRepository
	Envs    repository.EnvironmentRepository
	Tokens  *tokens.Service
	Secrets SecretResolver
	Issuer  string

	// Cache de material de sesión: solo para invalidación (logout,
	// cambios de permisos). Puede ser nil.
	Cache cache.Client
}

// CreateSessionTokens firma un session token con el secret derivado del
// environment y, si el environment configura refresh TTL, emite además un
// refresh token persistido.
func (s *Service) CreateSessionTokens(ctx context.Context, user *repository.User, env *repository.Environment) (*SessionTokens, error) {
	secret, err := s.Secrets.Resolve(env)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	exp := now.Add(env.SessionTTL)

	claims := &Claims{
		Staff: user.Staff,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	if user.Organization != nil {
		claims.Org = &OrgClaim{ID: user.Organization.ID, Name: user.Organization.Name}
	}

	signed, err := sign(claims, secret)
	if err != nil {
		return nil, err
	}

	out := &SessionTokens{Token: signed, TokenExpiresAt: exp}

	if env.RefreshTTL != nil {
		refresh, err := s.Tokens.Issue(ctx, repository.TokenRefresh, user.ID, *env.RefreshTTL, &env.ID)
		if err != nil {
			return nil, err
		}
		out.RefreshToken = refresh
		out.RefreshExpiresAt = now.Add(*env.RefreshTTL)
	}

	return out, nil
}

// AuthenticateWithPassword autentica email+password dentro de un environment.
//
// Política de multi-sesión: un login nuevo NO revoca los refresh tokens
// vivos del usuario; solo logout y reset de password lo hacen.
func (s *Service) AuthenticateWithPassword(ctx context.Context, email, plain, envID string) (*SessionTokens, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("session"),
		logger.Op("AuthenticateWithPassword"), logger.EnvID(envID))

	env, err := s.activeEnv(ctx, envID)
	if err != nil {
		log.Debug("environment rejected", logger.Err(err))
		metrics.AuthAttempts.WithLabelValues("password", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	user, err := s.Users.GetByEmail(ctx, envID, email)
	if err != nil {
		log.Debug("user not found")
		metrics.AuthAttempts.WithLabelValues("password", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	if !user.Active {
		log.Info("user inactive", logger.UserID(user.ID))
		metrics.AuthAttempts.WithLabelValues("password", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	if user.PasswordHash == nil || *user.PasswordHash == "" || !password.Verify(plain, *user.PasswordHash) {
		log.Debug("password check failed", logger.UserID(user.ID))
		metrics.AuthAttempts.WithLabelValues("password", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	st, err := s.CreateSessionTokens(ctx, user, env)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("password", "ok").Inc()
	return st, nil
}

// AuthenticateWithMagicLink canjea un magic login token. El token es de un
// solo uso: se borra inmediatamente tras canjearse. Un token emitido para
// otro environment se rechaza (cross-tenant).
func (s *Service) AuthenticateWithMagicLink(ctx context.Context, raw, envID string) (*SessionTokens, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("session"),
		logger.Op("AuthenticateWithMagicLink"), logger.EnvID(envID))

	env, err := s.activeEnv(ctx, envID)
	if err != nil {
		log.Debug("environment rejected", logger.Err(err))
		metrics.AuthAttempts.WithLabelValues("magic_link", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	tok, err := s.Tokens.Consume(ctx, raw, repository.TokenMagicLogin)
	if err != nil {
		log.Debug("magic token invalid or expired")
		metrics.AuthAttempts.WithLabelValues("magic_link", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	if tok.EnvironmentID == nil || *tok.EnvironmentID != envID {
		log.Info("cross-environment magic token rejected", logger.UserID(tok.RelationID))
		metrics.AuthAttempts.WithLabelValues("magic_link", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	// Un solo uso: borrar antes de emitir la sesión.
	if err := s.Tokens.Delete(ctx, tok.ID); err != nil {
		return nil, err
	}

	user, err := s.Users.GetByID(ctx, envID, tok.RelationID)
	if err != nil || !user.Active {
		log.Debug("user rejected after magic token")
		metrics.AuthAttempts.WithLabelValues("magic_link", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	// El magic link prueba posesión del email.
	if !user.EmailVerified {
		if err := s.Users.SetEmailVerified(ctx, envID, user.ID); err != nil {
			log.Warn("set email verified failed", logger.Err(err))
		}
	}

	st, err := s.CreateSessionTokens(ctx, user, env)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("magic_link", "ok").Inc()
	return st, nil
}

// ReauthenticateWithRefreshToken rota un refresh token: el presentado se
// borra y la respuesta trae sesión nueva + refresh nuevo. Otros refresh
// tokens del usuario siguen vivos (multi-sesión).
func (s *Service) ReauthenticateWithRefreshToken(ctx context.Context, raw, envID string) (*SessionTokens, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("session"),
		logger.Op("ReauthenticateWithRefreshToken"), logger.EnvID(envID))

	env, err := s.activeEnv(ctx, envID)
	if err != nil {
		log.Debug("environment rejected", logger.Err(err))
		metrics.AuthAttempts.WithLabelValues("refresh", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	tok, err := s.Tokens.Consume(ctx, raw, repository.TokenRefresh)
	if err != nil {
		log.Debug("refresh token invalid or expired")
		metrics.AuthAttempts.WithLabelValues("refresh", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	if tok.EnvironmentID == nil || *tok.EnvironmentID != envID {
		log.Info("cross-environment refresh token rejected", logger.UserID(tok.RelationID))
		metrics.AuthAttempts.WithLabelValues("refresh", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	// Rotación: el refresh presentado muere acá.
	if err := s.Tokens.Delete(ctx, tok.ID); err != nil {
		return nil, err
	}

	user, err := s.Users.GetByID(ctx, envID, tok.RelationID)
	if err != nil || !user.Active {
		log.Debug("user rejected on refresh")
		metrics.AuthAttempts.WithLabelValues("refresh", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	st, err := s.CreateSessionTokens(ctx, user, env)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("refresh", "ok").Inc()
	return st, nil
}

// Logout revoca todos los refresh tokens del usuario e invalida el
// material de sesión cacheado.
func (s *Service) Logout(ctx context.Context, userID, envID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("session"),
		logger.Op("Logout"), logger.EnvID(envID), logger.UserID(userID))

	n, err := s.Tokens.InvalidateAll(ctx, repository.TokenRefresh, userID, envID)
	if err != nil {
		return err
	}
	log.Info("refresh tokens revoked", logger.Count(n))

	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, SessionCacheKey(envID, userID)); err != nil {
			log.Warn("session cache invalidation failed", logger.Err(err))
		}
	}
	return nil
}

// ParseSession verifica firma y expiry de un session token contra el
// secret derivado del environment.
func (s *Service) ParseSession(raw string, env *repository.Environment) (*Claims, error) {
	secret, err := s.Secrets.Resolve(env)
	if err != nil {
		return nil, err
	}
	claims, err := parse(raw, secret, s.Issuer)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// SessionCacheKey arma la key de material de sesión cacheado.
func SessionCacheKey(envID, userID string) string {
	return "session:" + envID + ":" + userID
}

// activeEnv carga el environment y rechaza los inactivos.
func (s *Service) activeEnv(ctx context.Context, envID string) (*repository.Environment, error) {
	if _, err := uuid.Parse(envID); err != nil {
		return nil, repository.ErrInvalidInput
	}
	env, err := s.Envs.GetByID(ctx, envID)
	if err != nil {
		return nil, err
	}
	if !env.Active {
		return nil, repository.ErrNotFound
	}
	return env, nil
}
