package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// Piso de trabajo: configuraciones por debajo se rechazan en el arranque.
const (
	minMemoryKiB = 19 * 1024
	minTime      = 2
)

// Validate rechaza parámetros con factor de trabajo por debajo del mínimo.
func (p Params) Validate() error {
	if p.Memory < minMemoryKiB {
		return fmt.Errorf("password: memory %d KiB por debajo del mínimo %d", p.Memory, minMemoryKiB)
	}
	if p.Time < minTime {
		return fmt.Errorf("password: time %d por debajo del mínimo %d", p.Time, minTime)
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("password: parallelism debe ser >= 1")
	}
	if p.KeyLen < 16 {
		return fmt.Errorf("password: keylen %d por debajo del mínimo 16", p.KeyLen)
	}
	return nil
}

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify chequea un password contra un PHC string producido por Hash.
// El parseo es por segmentos: Sscanf con %s no sirve acá porque %s es
// greedy hasta el whitespace y se come los separadores $.
func Verify(plain, phc string) bool {
	// "" | "argon2id" | "v=19" | "m=..,t=..,p=.." | saltB64 | dkB64
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false
	}

	var v int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &v); err != nil || v != 19 {
		return false
	}
	var m, t, p int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}
	if m <= 0 || t <= 0 || p <= 0 || p > 255 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(dkStored) == 0 {
		return false
	}

	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}
