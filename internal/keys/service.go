// Package keys implementa la derivación y rotación de claves por environment.
//
// Cada environment tiene tres secretos: public key (identifica al tenant
// desde un frontend), secret key (backend a backend) y signing key (firma
// sus session tokens, nunca se expone). De cada una se persiste un par
// hash (lookup por igualdad) + ciphertext (recuperable para display).
//
// La unicidad global de los hashes la garantiza el unique index del store:
// acá se inserta primero y se reintenta ante ErrConflict, sin pre-check.
package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/metrics"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/secretbox"
	tokens "github.com/dropDatabas3/envgate/internal/security/token"
)

const (
	publicKeyPrefix = "eg_pub_"
	secretKeyPrefix = "eg_sec_"

	keyBytes        = 24 // => 32 chars base64url, largo fijo
	signingKeyBytes = 32
)

// ErrRetriesExhausted indica que las colisiones agotaron los reintentos.
// Falla cerrado: no se persiste ningún set parcial de claves.
var ErrRetriesExhausted = errors.New("keys: collision retries exhausted")

// EnvironmentKeys es el resultado de una creación: los plaintexts se
// muestran al caller una sola vez.
type EnvironmentKeys struct {
	PublicKey  string
	SecretKey  string
	SigningKey string

	PublicKeyHash string
	PublicKeyEnc  string
	SecretKeyHash string
	SecretKeyEnc  string
	SigningKeyEnc string
}

// Service genera, rota y revela claves de environment.
type Service struct {
	Envs repository.EnvironmentRepository

	// EncryptionSecret cifra los ciphertexts; IndexSecret es la clave HMAC
	// de los hashes de lookup. Son secrets de proceso, no por tenant.
	EncryptionSecret string
	IndexSecret      string

	MaxRetries int
}

func (s *Service) retries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return 5
}

// generateSet genera un set candidato completo de claves.
func (s *Service) generateSet() (*EnvironmentKeys, error) {
	pub, err := tokens.GenerateOpaqueToken(keyBytes)
	if err != nil {
		return nil, err
	}
	sec, err := tokens.GenerateOpaqueToken(keyBytes)
	if err != nil {
		return nil, err
	}
	sig, err := tokens.GenerateOpaqueToken(signingKeyBytes)
	if err != nil {
		return nil, err
	}

	ks := &EnvironmentKeys{
		PublicKey:  publicKeyPrefix + pub,
		SecretKey:  secretKeyPrefix + sec,
		SigningKey: sig,
	}

	ks.PublicKeyHash = secretbox.Hash256(ks.PublicKey, s.IndexSecret)
	ks.SecretKeyHash = secretbox.Hash256(ks.SecretKey, s.IndexSecret)

	if ks.PublicKeyEnc, err = secretbox.Encrypt(ks.PublicKey, s.EncryptionSecret); err != nil {
		return nil, fmt.Errorf("keys: encrypt public key: %w", err)
	}
	if ks.SecretKeyEnc, err = secretbox.Encrypt(ks.SecretKey, s.EncryptionSecret); err != nil {
		return nil, fmt.Errorf("keys: encrypt secret key: %w", err)
	}
	if ks.SigningKeyEnc, err = secretbox.Encrypt(ks.SigningKey, s.EncryptionSecret); err != nil {
		return nil, fmt.Errorf("keys: encrypt signing key: %w", err)
	}
	return ks, nil
}

// CreateEnvironment completa env con un set de claves nuevo y lo persiste.
// Ante colisión de hash (unique violation) regenera el set completo y
// reintenta. Devuelve los plaintexts: es la única vez que se entregan.
func (s *Service) CreateEnvironment(ctx context.Context, env *repository.Environment) (*EnvironmentKeys, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("keys"), logger.Op("CreateEnvironment"))

	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	for attempt := 1; attempt <= s.retries(); attempt++ {
		ks, err := s.generateSet()
		if err != nil {
			return nil, err
		}

		env.PublicKeyHash = ks.PublicKeyHash
		env.PublicKeyEnc = ks.PublicKeyEnc
		env.SecretKeyHash = ks.SecretKeyHash
		env.SecretKeyEnc = ks.SecretKeyEnc
		env.SigningKeyEnc = ks.SigningKeyEnc

		err = s.Envs.Create(ctx, env)
		if err == nil {
			log.Info("environment keys created", logger.EnvID(env.ID), logger.Attempt(attempt))
			return ks, nil
		}
		if !repository.IsConflict(err) {
			return nil, err
		}

		metrics.GenRetries.WithLabelValues("environment_keys").Inc()
		log.Warn("key hash collision, regenerating", logger.EnvID(env.ID), logger.Attempt(attempt))
	}

	return nil, ErrRetriesExhausted
}

// Rotate regenera una clave y swapea hash+ciphertext atómicamente.
// Devuelve el plaintext nuevo (se muestra una sola vez).
func (s *Service) Rotate(ctx context.Context, envID string, kind repository.KeyKind) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("keys"),
		logger.Op("Rotate"), logger.EnvID(envID), logger.KeyKind(string(kind)))

	for attempt := 1; attempt <= s.retries(); attempt++ {
		var plain string
		var swap repository.KeySwap
		var err error

		switch kind {
		case repository.KeyPublic, repository.KeySecret:
			raw, genErr := tokens.GenerateOpaqueToken(keyBytes)
			if genErr != nil {
				return "", genErr
			}
			if kind == repository.KeyPublic {
				plain = publicKeyPrefix + raw
			} else {
				plain = secretKeyPrefix + raw
			}
			enc, encErr := secretbox.Encrypt(plain, s.EncryptionSecret)
			if encErr != nil {
				return "", fmt.Errorf("keys: encrypt rotated key: %w", encErr)
			}
			swap = repository.KeySwap{
				Kind: kind,
				Hash: secretbox.Hash256(plain, s.IndexSecret),
				Enc:  enc,
			}
		case repository.KeySigning:
			plain, err = tokens.GenerateOpaqueToken(signingKeyBytes)
			if err != nil {
				return "", err
			}
			enc, encErr := secretbox.Encrypt(plain, s.EncryptionSecret)
			if encErr != nil {
				return "", fmt.Errorf("keys: encrypt rotated signing key: %w", encErr)
			}
			swap = repository.KeySwap{Kind: kind, Enc: enc}
		default:
			return "", repository.ErrInvalidInput
		}

		err = s.Envs.SwapKey(ctx, envID, swap)
		if err == nil {
			metrics.KeyRotations.WithLabelValues(string(kind)).Inc()
			log.Info("key rotated", logger.Attempt(attempt))
			return plain, nil
		}
		if !repository.IsConflict(err) {
			return "", err
		}

		metrics.GenRetries.WithLabelValues("rotation").Inc()
		log.Warn("rotated key hash collision, regenerating", logger.Attempt(attempt))
	}

	return "", ErrRetriesExhausted
}

// Reveal descifra el ciphertext de una clave para display en un contexto
// staff autorizado. Los hashes nunca son reversibles.
func (s *Service) Reveal(ctx context.Context, envID string, kind repository.KeyKind) (string, error) {
	env, err := s.Envs.GetByID(ctx, envID)
	if err != nil {
		return "", err
	}

	var enc string
	switch kind {
	case repository.KeyPublic:
		enc = env.PublicKeyEnc
	case repository.KeySecret:
		enc = env.SecretKeyEnc
	case repository.KeySigning:
		enc = env.SigningKeyEnc
	default:
		return "", repository.ErrInvalidInput
	}

	return secretbox.Decrypt(enc, s.EncryptionSecret)
}
