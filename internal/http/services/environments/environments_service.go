// Package environments contiene el service de la superficie admin de
// environments: creación con entrega única de claves, rotación, reveal y
// registro de email domains.
package environments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/environments"
	"github.com/dropDatabas3/envgate/internal/keys"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrUnknownKind   = errors.New("unknown key kind")
)

// Service opera sobre environments. Notify, si está seteado, despierta al
// poller de verificación cuando se registra un dominio nuevo.
type Service struct {
	Envs    repository.EnvironmentRepository
	Domains repository.DomainRepository
	Keys    *keys.Service

	DefaultSessionTTL time.Duration

	Notify func()
}

// KindFromString mapea el kind del wire al del dominio.
func KindFromString(s string) (repository.KeyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return repository.KeyPublic, nil
	case "secret":
		return repository.KeySecret, nil
	case "signing":
		return repository.KeySigning, nil
	default:
		return "", ErrUnknownKind
	}
}

// Create crea el environment y devuelve los plaintexts de las tres claves.
// Es la única respuesta que los contiene; después solo quedan hash y
// ciphertext.
func (s *Service) Create(ctx context.Context, in dto.CreateRequest) (*dto.CreateResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.Name == "" || in.ProjectID == "" {
		return nil, ErrMissingFields
	}

	sessionTTL := s.DefaultSessionTTL
	if in.SessionTTL != "" {
		d, err := time.ParseDuration(in.SessionTTL)
		if err != nil || d <= 0 {
			return nil, ErrMissingFields
		}
		sessionTTL = d
	}
	var refreshTTL *time.Duration
	if in.RefreshTTL != "" {
		d, err := time.ParseDuration(in.RefreshTTL)
		if err != nil || d <= 0 {
			return nil, ErrMissingFields
		}
		refreshTTL = &d
	}

	env := &repository.Environment{
		ID:            uuid.NewString(),
		ProjectID:     in.ProjectID,
		Name:          in.Name,
		Active:        true,
		SignUpEnabled: in.SignUpEnabled,
		SessionTTL:    sessionTTL,
		RefreshTTL:    refreshTTL,
	}

	ks, err := s.Keys.CreateEnvironment(ctx, env)
	if err != nil {
		return nil, err
	}

	return &dto.CreateResponse{
		Environment: view(env),
		PublicKey:   ks.PublicKey,
		SecretKey:   ks.SecretKey,
		SigningKey:  ks.SigningKey,
	}, nil
}

// Get devuelve la vista no-secreta del environment.
func (s *Service) Get(ctx context.Context, envID string) (*dto.Environment, error) {
	env, err := s.Envs.GetByID(ctx, envID)
	if err != nil {
		return nil, err
	}
	v := view(env)
	return &v, nil
}

// Rotate regenera una clave y devuelve el plaintext nuevo una sola vez.
// Las sesiones firmadas con una signing key rotada dejan de verificar:
// no hay invalidación explícita que hacer.
func (s *Service) Rotate(ctx context.Context, envID, kind string) (*dto.RotateResponse, error) {
	k, err := KindFromString(kind)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.Keys.Rotate(ctx, envID, k)
	if err != nil {
		return nil, err
	}
	return &dto.RotateResponse{Kind: string(k), Key: plaintext}, nil
}

// Reveal descifra el ciphertext almacenado. Ruta staff-only.
func (s *Service) Reveal(ctx context.Context, envID, kind string) (*dto.RevealResponse, error) {
	k, err := KindFromString(kind)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.Keys.Reveal(ctx, envID, k)
	if err != nil {
		return nil, err
	}
	return &dto.RevealResponse{Kind: string(k), Key: plaintext}, nil
}

// Delete elimina el environment (cascadea tokens por FK).
func (s *Service) Delete(ctx context.Context, envID string) error {
	return s.Envs.Delete(ctx, envID)
}

// AddDomain registra un email domain en pending y despierta al poller.
func (s *Service) AddDomain(ctx context.Context, envID, domain string) (*dto.Domain, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || !strings.Contains(domain, ".") {
		return nil, ErrMissingFields
	}

	d := &repository.EmailDomain{
		ID:            uuid.NewString(),
		EnvironmentID: envID,
		Domain:        domain,
		Status:        repository.DomainPending,
	}
	if err := s.Domains.Create(ctx, d); err != nil {
		return nil, err
	}

	if s.Notify != nil {
		s.Notify()
	}
	logger.From(ctx).Info("email domain registered",
		logger.Component("environments"), logger.EnvID(envID), logger.Domain(domain))

	return &dto.Domain{
		ID:            d.ID,
		EnvironmentID: d.EnvironmentID,
		Domain:        d.Domain,
		Status:        string(d.Status),
	}, nil
}

func view(env *repository.Environment) dto.Environment {
	v := dto.Environment{
		ID:            env.ID,
		ProjectID:     env.ProjectID,
		Name:          env.Name,
		Active:        env.Active,
		SignUpEnabled: env.SignUpEnabled,
		SessionTTL:    env.SessionTTL.String(),
		CreatedAt:     env.CreatedAt,
	}
	if env.RefreshTTL != nil {
		v.RefreshTTL = env.RefreshTTL.String()
	}
	return v
}
