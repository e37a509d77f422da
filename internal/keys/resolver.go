package keys

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/security/secretbox"
)

// Resolver deriva el secret HMAC con el que se firman los session tokens
// de un environment. Implementa session.SecretResolver.
//
// Si AppSecret está configurado, el secret final es
// HMAC-SHA256(appSecret, signingKey): defensa en profundidad sin exponer
// longitudes de material (a diferencia de una concatenación cruda).
type Resolver struct {
	EncryptionSecret string
	AppSecret        string
}

func (r *Resolver) Resolve(env *repository.Environment) ([]byte, error) {
	signing, err := secretbox.Decrypt(env.SigningKeyEnc, r.EncryptionSecret)
	if err != nil {
		return nil, err
	}
	if r.AppSecret == "" {
		return []byte(signing), nil
	}
	mac := hmac.New(sha256.New, []byte(r.AppSecret))
	mac.Write([]byte(signing))
	return mac.Sum(nil), nil
}
