package middlewares

import (
	"context"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/session"
)

// IdentityKind es la fuente de identidad que satisfizo la autorización.
// Por request se usa exactamente UNA: la primera aplicable en el orden
// declarado de la ruta; nunca se mezclan resultados de varias fuentes.
type IdentityKind string

const (
	IdentitySession   IdentityKind = "session"
	IdentitySecretKey IdentityKind = "secret_key"
	IdentityPublicKey IdentityKind = "public_key"
)

// Identity es la identidad resuelta que los checks posteriores y el
// handler leen del contexto.
type Identity struct {
	Kind IdentityKind

	// UserID y Claims presentes solo para IdentitySession.
	UserID string
	Claims *session.Claims

	// Environment resuelto: el del session/URL, o el dueño de la key.
	Environment *repository.Environment
}

type envCtxKey struct{}
type targetEnvCtxKey struct{}
type identityCtxKey struct{}

// WithEnvironment inyecta el environment resuelto en el contexto.
func WithEnvironment(ctx context.Context, env *repository.Environment) context.Context {
	return context.WithValue(ctx, envCtxKey{}, env)
}

// GetEnvironment extrae el environment resuelto, o nil.
func GetEnvironment(ctx context.Context) *repository.Environment {
	if v := ctx.Value(envCtxKey{}); v != nil {
		if env, ok := v.(*repository.Environment); ok {
			return env
		}
	}
	return nil
}

// WithTargetEnvironment inyecta el environment direccionado por la URL en
// rutas admin, distinto del environment de la sesión del caller.
func WithTargetEnvironment(ctx context.Context, env *repository.Environment) context.Context {
	return context.WithValue(ctx, targetEnvCtxKey{}, env)
}

// AddressedEnvironment devuelve el environment que la ruta opera: el
// target si la ruta direcciona uno por URL, si no el resuelto.
func AddressedEnvironment(ctx context.Context) *repository.Environment {
	if v := ctx.Value(targetEnvCtxKey{}); v != nil {
		if env, ok := v.(*repository.Environment); ok {
			return env
		}
	}
	return GetEnvironment(ctx)
}

// WithIdentity inyecta la identidad autenticada en el contexto.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// GetIdentity extrae la identidad autenticada, o nil.
func GetIdentity(ctx context.Context) *Identity {
	if v := ctx.Value(identityCtxKey{}); v != nil {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}
