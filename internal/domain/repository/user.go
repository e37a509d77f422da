package repository

import (
	"context"
	"time"
)

// User representa un usuario final dentro del pool de un environment.
type User struct {
	ID            string
	EnvironmentID string
	Email         string
	FullName      string
	PasswordHash  *string
	EmailVerified bool
	Active        bool

	// Staff marca usuarios de plataforma (operaciones staff-only).
	// Viaja en el session token como claim.
	Staff bool

	// Referencia desnormalizada a la organización, si el usuario tiene una.
	// Se embebe en el session token.
	Organization *OrganizationSummary

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganizationSummary es lo mínimo de la organización que viaja en claims.
type OrganizationSummary struct {
	ID   string
	Name string
}

// UserRepository define operaciones sobre usuarios, siempre scoped al
// environment (un email puede existir en varios environments).
type UserRepository interface {
	// Create crea un usuario. Retorna ErrConflict si el email ya existe
	// en ese environment.
	Create(ctx context.Context, user *User) error

	// GetByID busca por UUID dentro del environment.
	GetByID(ctx context.Context, envID, id string) (*User, error)

	// GetByEmail busca por email dentro del environment.
	GetByEmail(ctx context.Context, envID, email string) (*User, error)

	// SetPasswordHash reemplaza el hash de password.
	SetPasswordHash(ctx context.Context, envID, id, phc string) error

	// SetEmailVerified marca el email como confirmado.
	SetEmailVerified(ctx context.Context, envID, id string) error
}
