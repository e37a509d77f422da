// Package secretbox provee cifrado reversible y hashing indexable para
// el material de credenciales por environment.
//
// Cada llamada a Encrypt genera salt y nonce frescos y los embebe en el
// string resultante, así Decrypt es auto-contenido (no hay que guardar IV
// aparte). El mismo plaintext nunca produce el mismo ciphertext dos veces;
// para lookups por igualdad usar Hash256.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	saltSize     = 16
	nonceSizeGCM = 12 // AES-GCM nonce recomendado (96 bits)
	sep          = "|"
)

// ErrFormat indica que el ciphertext no tiene el formato esperado
// (cantidad de segmentos o encoding inválido). En paths de lookup de
// credenciales debe propagarse como fallo de autenticación, nunca como 500.
type ErrFormat struct{ Reason string }

func (e *ErrFormat) Error() string { return "secretbox: formato inválido: " + e.Reason }

// IsFormatError verifica si el error es un *ErrFormat.
func IsFormatError(err error) bool {
	_, ok := err.(*ErrFormat)
	return ok
}

// deriveKey estira el secret con el salt vía HMAC-SHA256 para obtener
// una clave AES-256. El secret puede tener cualquier longitud.
func deriveKey(secret string, salt []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(salt)
	return mac.Sum(nil) // 32 bytes => AES-256
}

// Encrypt cifra plainText con el secret dado y devuelve
// base64(salt)|base64(nonce)|base64(ciphertext).
func Encrypt(plainText, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secretbox: secret vacío")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("salt random: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)

	return base64.StdEncoding.EncodeToString(salt) + sep +
		base64.StdEncoding.EncodeToString(nonce) + sep +
		base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(salt)|base64(nonce)|base64(ciphertext) y devuelve
// el texto plano. Con un secret distinto al usado para cifrar falla la
// autenticación GCM (error, nunca plaintext incorrecto).
func Decrypt(cipherText, secret string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 3 {
		return "", &ErrFormat{Reason: "esperado base64(salt)|base64(nonce)|base64(ciphertext)"}
	}
	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", &ErrFormat{Reason: "decode salt: " + err.Error()}
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", &ErrFormat{Reason: "decode nonce: " + err.Error()}
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", &ErrFormat{Reason: "decode ciphertext: " + err.Error()}
	}
	if len(salt) != saltSize {
		return "", &ErrFormat{Reason: fmt.Sprintf("salt inválido: esperado %d bytes, obtuvo %d", saltSize, len(salt))}
	}
	if len(nonce) != nonceSizeGCM {
		return "", &ErrFormat{Reason: fmt.Sprintf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))}
	}

	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// Hash256 devuelve HMAC-SHA256(secret, value) en hex. Determinístico:
// es el hash que se persiste para buscar environments por clave sin
// guardar ni recuperar el plaintext.
func Hash256(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
