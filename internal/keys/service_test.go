package keys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/security/secretbox"
)

const (
	testEncSecret   = "test-encryption-secret"
	testIndexSecret = "test-index-secret"
)

// fakeEnvRepo implementa repository.EnvironmentRepository en memoria y
// permite forzar colisiones para ejercitar el retry loop.
type fakeEnvRepo struct {
	envs map[string]*repository.Environment

	// conflictsLeft fuerza ErrConflict en los próximos N Create/SwapKey.
	conflictsLeft int
	attempts      int
}

func newFakeEnvRepo() *fakeEnvRepo {
	return &fakeEnvRepo{envs: map[string]*repository.Environment{}}
}

func (f *fakeEnvRepo) Create(_ context.Context, env *repository.Environment) error {
	f.attempts++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrConflict
	}
	for _, e := range f.envs {
		if e.PublicKeyHash == env.PublicKeyHash || e.SecretKeyHash == env.SecretKeyHash {
			return repository.ErrConflict
		}
	}
	cp := *env
	f.envs[env.ID] = &cp
	return nil
}

func (f *fakeEnvRepo) GetByID(_ context.Context, id string) (*repository.Environment, error) {
	e, ok := f.envs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEnvRepo) GetByPublicKeyHash(_ context.Context, hash string) (*repository.Environment, error) {
	for _, e := range f.envs {
		if e.PublicKeyHash == hash {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeEnvRepo) GetBySecretKeyHash(_ context.Context, hash string) (*repository.Environment, error) {
	for _, e := range f.envs {
		if e.SecretKeyHash == hash {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeEnvRepo) SwapKey(_ context.Context, envID string, swap repository.KeySwap) error {
	f.attempts++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrConflict
	}
	e, ok := f.envs[envID]
	if !ok {
		return repository.ErrNotFound
	}
	switch swap.Kind {
	case repository.KeyPublic:
		e.PublicKeyHash, e.PublicKeyEnc = swap.Hash, swap.Enc
	case repository.KeySecret:
		e.SecretKeyHash, e.SecretKeyEnc = swap.Hash, swap.Enc
	case repository.KeySigning:
		e.SigningKeyEnc = swap.Enc
	default:
		return repository.ErrInvalidInput
	}
	return nil
}

func (f *fakeEnvRepo) IsOwnedBy(_ context.Context, _, _ string) (bool, error) { return false, nil }

func (f *fakeEnvRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.envs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.envs, id)
	return nil
}

func newTestService(repo repository.EnvironmentRepository) *Service {
	return &Service{
		Envs:             repo,
		EncryptionSecret: testEncSecret,
		IndexSecret:      testIndexSecret,
		MaxRetries:       5,
	}
}

func testEnv() *repository.Environment {
	return &repository.Environment{
		ProjectID:  "proj-1",
		Name:       "staging",
		Active:     true,
		SessionTTL: 15 * time.Minute,
	}
}

func TestCreateEnvironment_KeysAreConsistent(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	env := testEnv()
	ks, err := svc.CreateEnvironment(ctx, env)
	require.NoError(t, err)

	// Prefijos distinguibles por tipo de clave.
	assert.Contains(t, ks.PublicKey, "eg_pub_")
	assert.Contains(t, ks.SecretKey, "eg_sec_")
	assert.NotEmpty(t, ks.SigningKey)

	// El hash persistido corresponde al plaintext devuelto.
	assert.Equal(t, secretbox.Hash256(ks.PublicKey, testIndexSecret), env.PublicKeyHash)
	assert.Equal(t, secretbox.Hash256(ks.SecretKey, testIndexSecret), env.SecretKeyHash)

	// El ciphertext persistido descifra al plaintext devuelto.
	pub, err := secretbox.Decrypt(env.PublicKeyEnc, testEncSecret)
	require.NoError(t, err)
	assert.Equal(t, ks.PublicKey, pub)
	sig, err := secretbox.Decrypt(env.SigningKeyEnc, testEncSecret)
	require.NoError(t, err)
	assert.Equal(t, ks.SigningKey, sig)

	// Lookup por hash encuentra el environment.
	found, err := repo.GetBySecretKeyHash(context.Background(), env.SecretKeyHash)
	require.NoError(t, err)
	assert.Equal(t, env.ID, found.ID)
}

func TestCreateEnvironment_NoCollisionEscapes(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		env := testEnv()
		_, err := svc.CreateEnvironment(ctx, env)
		require.NoError(t, err)
		require.False(t, seen[env.PublicKeyHash], "public key hash repeated")
		require.False(t, seen[env.SecretKeyHash], "secret key hash repeated")
		seen[env.PublicKeyHash] = true
		seen[env.SecretKeyHash] = true
	}
}

func TestCreateEnvironment_RetriesOnConflict(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	repo.conflictsLeft = 2
	svc := newTestService(repo)

	env := testEnv()
	_, err := svc.CreateEnvironment(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.attempts)
}

func TestCreateEnvironment_FailsClosedOnExhaustion(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	repo.conflictsLeft = 100
	svc := newTestService(repo)

	_, err := svc.CreateEnvironment(context.Background(), testEnv())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	// Nada persistido: sin sets parciales.
	assert.Empty(t, repo.envs)
}

func TestRotate_SwapsHashAndCiphertextTogether(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	env := testEnv()
	old, err := svc.CreateEnvironment(ctx, env)
	require.NoError(t, err)

	plain, err := svc.Rotate(ctx, env.ID, repository.KeySecret)
	require.NoError(t, err)
	assert.NotEqual(t, old.SecretKey, plain)

	after, err := repo.GetByID(ctx, env.ID)
	require.NoError(t, err)
	// Hash y ciphertext nuevos corresponden entre sí.
	assert.Equal(t, secretbox.Hash256(plain, testIndexSecret), after.SecretKeyHash)
	dec, err := secretbox.Decrypt(after.SecretKeyEnc, testEncSecret)
	require.NoError(t, err)
	assert.Equal(t, plain, dec)

	// La clave vieja ya no resuelve a ningún environment.
	_, err = repo.GetBySecretKeyHash(ctx, secretbox.Hash256(old.SecretKey, testIndexSecret))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRotate_SigningKeyOnlyTouchesCiphertext(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	env := testEnv()
	_, err := svc.CreateEnvironment(ctx, env)
	require.NoError(t, err)

	before, _ := repo.GetByID(ctx, env.ID)
	plain, err := svc.Rotate(ctx, env.ID, repository.KeySigning)
	require.NoError(t, err)

	after, _ := repo.GetByID(ctx, env.ID)
	assert.Equal(t, before.PublicKeyHash, after.PublicKeyHash)
	assert.Equal(t, before.SecretKeyHash, after.SecretKeyHash)
	dec, err := secretbox.Decrypt(after.SigningKeyEnc, testEncSecret)
	require.NoError(t, err)
	assert.Equal(t, plain, dec)
}

func TestReveal(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	env := testEnv()
	ks, err := svc.CreateEnvironment(ctx, env)
	require.NoError(t, err)

	got, err := svc.Reveal(ctx, env.ID, repository.KeySecret)
	require.NoError(t, err)
	assert.Equal(t, ks.SecretKey, got)

	_, err = svc.Reveal(ctx, "nope", repository.KeyPublic)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResolver_DerivedSecret(t *testing.T) {
	t.Parallel()

	repo := newFakeEnvRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	env := testEnv()
	ks, err := svc.CreateEnvironment(ctx, env)
	require.NoError(t, err)

	// Sin app secret: el secret es la signing key tal cual.
	r := &Resolver{EncryptionSecret: testEncSecret}
	sec, err := r.Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, []byte(ks.SigningKey), sec)

	// Con app secret: derivado, distinto de la signing key cruda.
	r2 := &Resolver{EncryptionSecret: testEncSecret, AppSecret: "global"}
	sec2, err := r2.Resolve(env)
	require.NoError(t, err)
	assert.NotEqual(t, sec, sec2)
	assert.Len(t, sec2, 32)

	// Determinístico para el mismo environment.
	again, err := r2.Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, sec2, again)
}
