package secretbox

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := "clave-de-prueba-no-usar-en-prod"
	msg := "hola mundo ✓ — secreto"

	ct, err := Encrypt(msg, secret)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := Decrypt(ct, secret)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	t.Parallel()

	secret := "s3cr3t"
	a, err := Encrypt("mismo plaintext", secret)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt("mismo plaintext", secret)
	if err != nil {
		t.Fatal(err)
	}
	// salt + nonce random por llamada => nunca el mismo ciphertext
	if a == b {
		t.Fatalf("expected distinct ciphertexts, got equal")
	}
}

func TestDecrypt_WrongSecretFails(t *testing.T) {
	t.Parallel()

	ct, err := Encrypt("top secret", "secret-a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(ct, "secret-b"); err == nil {
		t.Fatalf("expected auth error with wrong secret, got nil")
	}
}

func TestDecrypt_MalformedIsFormatError(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"solo-un-segmento",
		"a|b",            // faltan segmentos
		"a|b|c|d",        // segmentos de más
		"$$$|###|@@@",    // base64 inválido
		"YQ==|YQ==|YQ==", // salt/nonce de tamaño incorrecto
	}
	for _, ct := range cases {
		_, err := Decrypt(ct, "whatever")
		if err == nil {
			t.Fatalf("expected error for %q", ct)
		}
		if !IsFormatError(err) {
			t.Fatalf("expected ErrFormat for %q, got %v", ct, err)
		}
	}
}

func TestDecrypt_TamperDetected(t *testing.T) {
	t.Parallel()

	ct, err := Encrypt("top secret", "clave")
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 3 {
		t.Fatalf("unexpected ct format")
	}
	// corromper el último segmento alterando un caracter base64 válido
	last := []byte(parts[2])
	if last[0] == 'A' {
		last[0] = 'B'
	} else {
		last[0] = 'A'
	}
	parts[2] = string(last)

	if _, err := Decrypt(strings.Join(parts, "|"), "clave"); err == nil {
		t.Fatalf("expected auth error, got nil")
	}
}

func TestHash256_DeterministicAndKeyed(t *testing.T) {
	t.Parallel()

	a := Hash256("tl_sk_abc123", "index-secret")
	b := Hash256("tl_sk_abc123", "index-secret")
	if a != b {
		t.Fatalf("hash must be deterministic")
	}
	if Hash256("tl_sk_abc123", "otro-secret") == a {
		t.Fatalf("hash must depend on the secret")
	}
	if Hash256("tl_sk_abc124", "index-secret") == a {
		t.Fatalf("hash must depend on the value")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 (64 chars), got %d", len(a))
	}
}
