package repository

import (
	"context"
	"time"
)

// Environment representa un tenant del sistema: namespace aislado con sus
// propias claves, política de sign-up y pool de usuarios.
//
// Invariantes:
//   - PublicKeyHash y SecretKeyHash son únicos globalmente (unique index).
//   - Las claves solo mutan vía rotación explícita: hash y ciphertext de la
//     misma clave se reemplazan juntos o no se reemplazan.
//   - No se borra mientras tenga usuarios; el delete cascadea tokens.
type Environment struct {
	ID        string
	ProjectID string
	Name      string
	Active    bool

	// Política de registro: si es false, solo se entra por invitación.
	SignUpEnabled bool

	// Par hash (lookup por igualdad) + ciphertext (recuperable para display)
	// por cada clave. La signing key nunca se busca por valor: solo ciphertext.
	PublicKeyHash string
	PublicKeyEnc  string
	SecretKeyHash string
	SecretKeyEnc  string
	SigningKeyEnc string

	// TTL de session token. RefreshTTL nil deshabilita emisión de refresh.
	SessionTTL time.Duration
	RefreshTTL *time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyKind identifica cuál de las tres claves de un environment se opera.
type KeyKind string

const (
	KeyPublic  KeyKind = "public"
	KeySecret  KeyKind = "secret"
	KeySigning KeyKind = "signing"
)

// KeySwap contiene el par hash+ciphertext nuevo para una rotación.
// Hash vacío para la signing key (no tiene hash de lookup).
type KeySwap struct {
	Kind KeyKind
	Hash string
	Enc  string
}

// EnvironmentRepository define operaciones sobre environments.
type EnvironmentRepository interface {
	// Create inserta el environment con su set completo de claves.
	// Retorna ErrConflict si algún hash colisiona con otro environment
	// (unique violation) — el caller regenera y reintenta.
	Create(ctx context.Context, env *Environment) error

	// GetByID busca por UUID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Environment, error)

	// GetByPublicKeyHash busca el environment dueño de esa public key.
	GetByPublicKeyHash(ctx context.Context, hash string) (*Environment, error)

	// GetBySecretKeyHash busca el environment dueño de esa secret key.
	GetBySecretKeyHash(ctx context.Context, hash string) (*Environment, error)

	// SwapKey reemplaza hash+ciphertext de una clave en un solo UPDATE.
	// Retorna ErrConflict si el hash nuevo colisiona, ErrNotFound si el
	// environment no existe.
	SwapKey(ctx context.Context, envID string, swap KeySwap) error

	// IsOwnedBy verifica si el proyecto dueño del environment pertenece
	// al usuario dado.
	IsOwnedBy(ctx context.Context, envID, userID string) (bool, error)

	// Delete elimina el environment y cascadea sus tokens.
	Delete(ctx context.Context, id string) error
}
