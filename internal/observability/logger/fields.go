package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// EnvID crea un campo para el ID del environment (tenant).
func EnvID(v string) zap.Field {
	return zap.String("env_id", v)
}

// ProjectID crea un campo para el ID del proyecto dueño.
func ProjectID(v string) zap.Field {
	return zap.String("project_id", v)
}

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// TokenType crea un campo para el tipo de token.
func TokenType(v string) zap.Field {
	return zap.String("token_type", v)
}

// KeyKind crea un campo para el tipo de clave (public/secret/signing).
func KeyKind(v string) zap.Field {
	return zap.String("key_kind", v)
}

// Domain crea un campo para un email domain.
func Domain(v string) zap.Field {
	return zap.String("domain", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Any crea un campo para un valor arbitrario.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Attempt crea un campo para un número de reintento.
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}
