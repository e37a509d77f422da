package password

import (
	"strings"
	"testing"
)

// Parámetros bajos para que los tests no tarden (igual sobre el piso).
var testParams = Params{Memory: 19 * 1024, Time: 2, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	phc, err := Hash(testParams, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !Verify("correct horse battery staple", phc) {
		t.Fatalf("Verify should accept the original password")
	}
	if Verify("wrong password", phc) {
		t.Fatalf("Verify should reject a wrong password")
	}
}

func TestHash_RejectsEmptyPassword(t *testing.T) {
	t.Parallel()

	if _, err := Hash(testParams, ""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestParams_ValidateFloor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"default", Default, true},
		{"floor", testParams, true},
		{"low memory", Params{Memory: 8 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}, false},
		{"low time", Params{Memory: 64 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, false},
		{"zero parallelism", Params{Memory: 64 * 1024, Time: 3, Parallelism: 0, KeyLen: 32}, false},
		{"short key", Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 8}, false},
	}
	for _, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestVerify_AcceptsEveryFreshHash(t *testing.T) {
	t.Parallel()

	// El PHC tiene 6 segmentos separados por $; Verify tiene que
	// reconstruirlos exactamente (salt y dk son segmentos separados).
	for _, plain := range []string{"a", "contraseña con espacios", "p$ss$word"} {
		phc, err := Hash(testParams, plain)
		if err != nil {
			t.Fatalf("Hash(%q) err: %v", plain, err)
		}
		if got := len(strings.Split(phc, "$")); got != 6 {
			t.Fatalf("PHC %q has %d segments, want 6", phc, got)
		}
		if !Verify(plain, phc) {
			t.Fatalf("Verify should accept the password that produced %q", phc)
		}
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	t.Parallel()

	for _, phc := range []string{
		"",
		"not-a-phc",
		"$argon2id$v=18$m=1,t=1,p=1$YQ$YQ",            // versión desconocida
		"$argon2id$v=19$m=19456,t=2,p=1$YQ",           // falta el segmento dk
		"$argon2id$v=19$m=19456,t=2,p=1$YQ$YQ$extra",  // segmento de más
		"$argon2id$v=19$m=19456,t=2,p=1$!!$YQ",        // salt no-base64
		"$argon2id$v=19$m=19456,t=2,p=1$YQ$",          // dk vacío
		"$argon2i$v=19$m=19456,t=2,p=1$YQ$YQ",         // variante equivocada
		"$argon2id$v=19$m=19456,t=2,p=9999$YQ$YQ",     // p fuera de rango
	} {
		if Verify("x", phc) {
			t.Fatalf("Verify should reject malformed PHC %q", phc)
		}
	}
}
