// Package environments contiene DTOs para la superficie admin de
// environments.
package environments

import "time"

// CreateRequest crea un environment dentro de un proyecto.
type CreateRequest struct {
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	SignUpEnabled bool   `json:"sign_up_enabled"`

	// SessionTTL / RefreshTTL como duraciones tipo "15m", "720h".
	// RefreshTTL vacío = sin refresh tokens.
	SessionTTL string `json:"session_ttl,omitempty"`
	RefreshTTL string `json:"refresh_ttl,omitempty"`
}

// CreateResponse devuelve los plaintexts UNA sola vez; después solo quedan
// hash y ciphertext.
type CreateResponse struct {
	Environment Environment `json:"environment"`
	PublicKey   string      `json:"public_key"`
	SecretKey   string      `json:"secret_key"`
	SigningKey  string      `json:"signing_key"`
}

// Environment es la vista no-secreta de un environment.
type Environment struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	Active        bool      `json:"active"`
	SignUpEnabled bool      `json:"sign_up_enabled"`
	SessionTTL    string    `json:"session_ttl"`
	RefreshTTL    string    `json:"refresh_ttl,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RotateRequest rota una de las tres claves.
type RotateRequest struct {
	Kind string `json:"kind"` // "public" | "secret" | "signing"
}

// RotateResponse devuelve el plaintext nuevo una sola vez.
type RotateResponse struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// RevealResponse devuelve el plaintext descifrado (staff-only).
type RevealResponse struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// DomainRequest registra un email domain para verificación.
type DomainRequest struct {
	Domain string `json:"domain"`
}

// Domain es la vista de un email domain registrado.
type Domain struct {
	ID            string     `json:"id"`
	EnvironmentID string     `json:"environment_id"`
	Domain        string     `json:"domain"`
	Status        string     `json:"status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}
