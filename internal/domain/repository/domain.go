package repository

import (
	"context"
	"time"
)

// DomainStatus estado de verificación de un email domain custom.
type DomainStatus string

const (
	DomainPending  DomainStatus = "pending"
	DomainVerified DomainStatus = "verified"
	DomainFailed   DomainStatus = "failed"
)

// EmailDomain un dominio de email custom de un environment, verificado
// en background por el poller.
type EmailDomain struct {
	ID            string
	EnvironmentID string
	Domain        string
	Status        DomainStatus
	Attempts      int
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// DomainRepository define operaciones del poller de verificación.
type DomainRepository interface {
	// Create registra un dominio en estado pending.
	Create(ctx context.Context, d *EmailDomain) error

	// ListPending retorna los dominios pendientes de verificación.
	ListPending(ctx context.Context) ([]EmailDomain, error)

	// CountPending retorna cuántos dominios quedan pendientes.
	CountPending(ctx context.Context) (int, error)

	// SetStatus actualiza estado y last_checked_at de un dominio.
	SetStatus(ctx context.Context, id string, status DomainStatus) error

	// RecordFailure incrementa el contador de intentos fallidos sin sacar
	// al dominio de pending. Un check de MX puede fallar por DNS transitorio
	// y el dominio tiene que seguir entrando en los sweeps. Retorna el
	// total acumulado de intentos.
	RecordFailure(ctx context.Context, id string) (int, error)
}
