package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/security/secretbox"
	"github.com/dropDatabas3/envgate/internal/session"
)

const (
	testIndexSecret = "index-secret-para-tests"
	testEnvID       = "2f8b9a10-0000-4000-8000-0000000000aa"
	testOtherEnvID  = "2f8b9a10-0000-4000-8000-0000000000bb"
)

type staticResolver struct{ secret []byte }

func (s staticResolver) Resolve(_ *repository.Environment) ([]byte, error) {
	return s.secret, nil
}

// fakeEnvRepo indexa environments por id y por hash de key.
type fakeEnvRepo struct {
	byID     map[string]*repository.Environment
	owners   map[string]string // envID -> userID dueño
	ownerErr error
}

func newFakeEnvRepo(envs ...*repository.Environment) *fakeEnvRepo {
	r := &fakeEnvRepo{byID: map[string]*repository.Environment{}, owners: map[string]string{}}
	for _, e := range envs {
		r.byID[e.ID] = e
	}
	return r
}

func (r *fakeEnvRepo) Create(_ context.Context, _ *repository.Environment) error {
	return repository.ErrInvalidInput
}

func (r *fakeEnvRepo) GetByID(_ context.Context, id string) (*repository.Environment, error) {
	if e, ok := r.byID[id]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeEnvRepo) GetByPublicKeyHash(_ context.Context, hash string) (*repository.Environment, error) {
	for _, e := range r.byID {
		if e.PublicKeyHash == hash {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeEnvRepo) GetBySecretKeyHash(_ context.Context, hash string) (*repository.Environment, error) {
	for _, e := range r.byID {
		if e.SecretKeyHash == hash {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeEnvRepo) SwapKey(_ context.Context, _ string, _ repository.KeySwap) error {
	return repository.ErrInvalidInput
}

func (r *fakeEnvRepo) IsOwnedBy(_ context.Context, envID, userID string) (bool, error) {
	if r.ownerErr != nil {
		return false, r.ownerErr
	}
	return r.owners[envID] == userID, nil
}

func (r *fakeEnvRepo) Delete(_ context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

func testEnv(id, secretKey, publicKey string) *repository.Environment {
	return &repository.Environment{
		ID:            id,
		ProjectID:     "proj-1",
		Name:          "production",
		Active:        true,
		SecretKeyHash: secretbox.Hash256(secretKey, testIndexSecret),
		PublicKeyHash: secretbox.Hash256(publicKey, testIndexSecret),
		SessionTTL:    15 * time.Minute,
	}
}

// okHandler responde 200 y reporta la identidad que vio.
func okHandler(t *testing.T, saw **Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if saw != nil {
			*saw = GetIdentity(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func sessionService(envs repository.EnvironmentRepository) *session.Service {
	return &session.Service{
		Envs:    envs,
		Secrets: staticResolver{secret: []byte("derived-session-secret")},
		Issuer:  "envgate",
	}
}

func signedSession(t *testing.T, svc *session.Service, env *repository.Environment, staff bool) string {
	t.Helper()
	user := &repository.User{ID: "user-1", EnvironmentID: env.ID, Email: "ana@example.com", Staff: staff}
	out, err := svc.CreateSessionTokens(context.Background(), user, env)
	require.NoError(t, err)
	return out.Token
}

func TestResolveEnvironment(t *testing.T) {
	active := testEnv(testEnvID, "eg_sec_aaa", "eg_pub_aaa")
	inactive := testEnv(testOtherEnvID, "eg_sec_bbb", "eg_pub_bbb")
	inactive.Active = false
	repo := newFakeEnvRepo(active, inactive)

	var sawEnv *repository.Environment
	h := ResolveEnvironment(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawEnv = GetEnvironment(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		envID  string
		status int
	}{
		{"activo pasa", testEnvID, http.StatusOK},
		{"inactivo rechazado", testOtherEnvID, http.StatusUnauthorized},
		{"inexistente rechazado", "2f8b9a10-0000-4000-8000-0000000000cc", http.StatusUnauthorized},
		{"sin env id rechazado", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sawEnv = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
			if tc.envID != "" {
				req.Header.Set(HeaderEnvID, tc.envID)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				require.NotNil(t, sawEnv)
				require.Equal(t, testEnvID, sawEnv.ID)
			}
		})
	}
}

func TestSecretKeyAttachesTenantWithoutSession(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_live_abc", "eg_pub_live_abc")
	repo := newFakeEnvRepo(env)

	var saw *Identity
	h := RequireIdentity(&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret})(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodPost, "/v1/users", nil)
	req.Header.Set(HeaderAPIKey, "eg_sec_live_abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, saw)
	require.Equal(t, IdentitySecretKey, saw.Kind)
	require.Empty(t, saw.UserID, "una key no identifica a un usuario")
	require.NotNil(t, saw.Environment)
	require.Equal(t, testEnvID, saw.Environment.ID)
}

func TestUnknownOrInactiveKeyRejected(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_real", "eg_pub_real")
	inactive := testEnv(testOtherEnvID, "eg_sec_off", "eg_pub_off")
	inactive.Active = false
	repo := newFakeEnvRepo(env, inactive)

	h := RequireIdentity(
		&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret},
		&PublicKeySource{Envs: repo, IndexSecret: testIndexSecret},
	)(okHandler(t, nil))

	cases := []struct {
		name string
		key  string
	}{
		{"secret desconocida", "eg_sec_no_existe"},
		{"public desconocida", "eg_pub_no_existe"},
		{"secret de environment inactivo", "eg_sec_off"},
		{"sin prefijo conocido", "algo-que-no-es-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/users", nil)
			req.Header.Set(HeaderAPIKey, tc.key)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, http.StatusUnauthorized, rr.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, "unauthorized", body["code"])
		})
	}
}

func TestKeyAgainstOtherEnvironmentRejected(t *testing.T) {
	addressed := testEnv(testEnvID, "eg_sec_addr", "eg_pub_addr")
	other := testEnv(testOtherEnvID, "eg_sec_other", "eg_pub_other")
	repo := newFakeEnvRepo(addressed, other)

	h := ResolveEnvironment(repo)(
		RequireIdentity(&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret})(okHandler(t, nil)),
	)

	// Key válida, pero del environment B contra una ruta que direcciona A.
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set(HeaderEnvID, testEnvID)
	req.Header.Set(HeaderAPIKey, "eg_sec_other")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// La misma key contra su propio environment sí pasa.
	req = httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set(HeaderEnvID, testOtherEnvID)
	req.Header.Set(HeaderAPIKey, "eg_sec_other")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestKeyWithMismatchedHeaderRejectedWithoutResolver(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_solo", "eg_pub_solo")
	repo := newFakeEnvRepo(env)

	// Cadena sin ResolveEnvironment: la key sola autentica, pero si el
	// caller manda X-Env-Id apuntando a otro environment el header no
	// se ignora.
	h := RequireIdentity(&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret})(okHandler(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	req.Header.Set(HeaderAPIKey, "eg_sec_solo")
	req.Header.Set(HeaderEnvID, testOtherEnvID)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Header coincidente, o ausente, pasa.
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	req.Header.Set(HeaderAPIKey, "eg_sec_solo")
	req.Header.Set(HeaderEnvID, testEnvID)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	req.Header.Set(HeaderAPIKey, "eg_sec_solo")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestFirstApplicableSourceWins(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_winner", "eg_pub_winner")
	repo := newFakeEnvRepo(env)
	svc := sessionService(repo)
	bearer := signedSession(t, svc, env, false)

	// El request satisface ambas fuentes; decide el orden declarado,
	// nunca un merge.
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		r.Header.Set(HeaderEnvID, testEnvID)
		r.Header.Set("Authorization", "Bearer "+bearer)
		r.Header.Set(HeaderAPIKey, "eg_sec_winner")
		return r
	}

	var saw *Identity
	secretFirst := ResolveEnvironment(repo)(RequireIdentity(
		&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret},
		&SessionSource{Sessions: svc},
	)(okHandler(t, &saw)))
	rr := httptest.NewRecorder()
	secretFirst.ServeHTTP(rr, req())
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, IdentitySecretKey, saw.Kind)

	saw = nil
	sessionFirst := ResolveEnvironment(repo)(RequireIdentity(
		&SessionSource{Sessions: svc},
		&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret},
	)(okHandler(t, &saw)))
	rr = httptest.NewRecorder()
	sessionFirst.ServeHTTP(rr, req())
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, IdentitySession, saw.Kind)
	require.Equal(t, "user-1", saw.UserID)
}

func TestApplicableSourceRejectionIsFinal(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_final", "eg_pub_final")
	repo := newFakeEnvRepo(env)
	svc := sessionService(repo)

	// Bearer inválido: la fuente session aplica y rechaza; no se intenta
	// la key válida que viene después.
	h := ResolveEnvironment(repo)(RequireIdentity(
		&SessionSource{Sessions: svc},
		&SecretKeySource{Envs: repo, IndexSecret: testIndexSecret},
	)(okHandler(t, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set(HeaderEnvID, testEnvID)
	req.Header.Set("Authorization", "Bearer no-es-un-jwt")
	req.Header.Set(HeaderAPIKey, "eg_sec_final")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireStaff(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_staff", "eg_pub_staff")
	repo := newFakeEnvRepo(env)
	svc := sessionService(repo)

	h := ResolveEnvironment(repo)(RequireIdentity(&SessionSource{Sessions: svc})(
		RequireStaff()(okHandler(t, nil)),
	))

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/domains", nil)
		req.Header.Set(HeaderEnvID, testEnvID)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	// Sesión válida sin flag staff: 403, no 401.
	rr := do(signedSession(t, svc, env, false))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(signedSession(t, svc, env, true))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do("")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireEnvironmentOwner(t *testing.T) {
	env := testEnv(testEnvID, "eg_sec_own", "eg_pub_own")
	repo := newFakeEnvRepo(env)
	repo.owners[testEnvID] = "user-1"
	svc := sessionService(repo)

	h := ResolveEnvironment(repo)(RequireIdentity(&SessionSource{Sessions: svc})(
		RequireEnvironmentOwner(repo)(okHandler(t, nil)),
	))

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/environments/rotate", nil)
		req.Header.Set(HeaderEnvID, testEnvID)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := do(signedSession(t, svc, env, false))
	require.Equal(t, http.StatusOK, rr.Code)

	// No-dueño: 404, para no confirmar que el environment existe.
	repo.owners[testEnvID] = "otro-usuario"
	rr = do(signedSession(t, svc, env, false))
	require.Equal(t, http.StatusNotFound, rr.Code)

	// Staff pasa aunque no sea dueño.
	rr = do(signedSession(t, svc, env, true))
	require.Equal(t, http.StatusOK, rr.Code)
}

type fakeLimiter struct {
	res RateLimitResult
	err error
}

func (f *fakeLimiter) Allow(_ context.Context, _ string) (RateLimitResult, error) {
	return f.res, f.err
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("denegado responde 429 con Retry-After", func(t *testing.T) {
		lim := &fakeLimiter{res: RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second, WindowTTL: 30 * time.Second}}
		h := RateLimit(RateLimitConfig{Limiter: lim, KeyFunc: IPOnlyRateKey})(next)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		require.Equal(t, "30", rr.Header().Get("Retry-After"))
	})

	t.Run("error del limiter deja pasar", func(t *testing.T) {
		lim := &fakeLimiter{err: context.DeadlineExceeded}
		h := RateLimit(RateLimitConfig{Limiter: lim})(next)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("whitelist excluida", func(t *testing.T) {
		lim := &fakeLimiter{res: RateLimitResult{Allowed: false}}
		h := RateLimit(RateLimitConfig{Limiter: lim, Whitelist: []string{"/healthz"}})(next)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})
}
