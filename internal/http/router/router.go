// Package router arma el route table: cada ruta declara su cadena de
// autorización estáticamente, en el orden en que se ejecuta. Qué identidad
// exige cada ruta se lee acá, no se descubre en runtime.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	authctrl "github.com/dropDatabas3/envgate/internal/http/controllers/auth"
	envctrl "github.com/dropDatabas3/envgate/internal/http/controllers/environments"
	"github.com/dropDatabas3/envgate/internal/http/helpers"
	mw "github.com/dropDatabas3/envgate/internal/http/middlewares"
	"github.com/dropDatabas3/envgate/internal/session"
)

// Deps contiene todo lo que el router necesita para armar las cadenas.
type Deps struct {
	Envs     repository.EnvironmentRepository
	Sessions *session.Service

	// IndexSecret es la clave HMAC de los lookups de api keys.
	IndexSecret string

	Auth         *authctrl.Controller
	Environments *envctrl.Controller

	// RateLimiter aplica a los endpoints de credenciales. Opcional.
	RateLimiter mw.RateLimiter

	// Metrics es el handler de promhttp. Opcional.
	Metrics http.Handler
}

// New construye el router HTTP completo.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID())
	r.Use(mw.Logging())
	r.Use(mw.Recover())

	// Fuentes de identidad, compartidas entre rutas.
	publicKey := &mw.PublicKeySource{Envs: deps.Envs, IndexSecret: deps.IndexSecret}
	secretKey := &mw.SecretKeySource{Envs: deps.Envs, IndexSecret: deps.IndexSecret}
	sessionSrc := &mw.SessionSource{Sessions: deps.Sessions}

	// Cualquiera de las dos api keys identifica al tenant; la primera
	// aplicable por prefijo gana.
	keyAuth := mw.RequireIdentity(secretKey, publicKey)

	rate := mw.RateLimit(mw.RateLimitConfig{
		Limiter: deps.RateLimiter,
		KeyFunc: mw.IPPathRateKey,
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(rate)

		r.Method(http.MethodPost, "/signup", mw.ChainFunc(deps.Auth.SignUp, keyAuth))
		r.Method(http.MethodPost, "/login", mw.ChainFunc(deps.Auth.Login, keyAuth))
		r.Method(http.MethodPost, "/magic-link", mw.ChainFunc(deps.Auth.MagicLink, keyAuth))
		r.Method(http.MethodPost, "/magic-link/redeem", mw.ChainFunc(deps.Auth.MagicLinkRedeem, keyAuth))
		r.Method(http.MethodPost, "/refresh", mw.ChainFunc(deps.Auth.Refresh, keyAuth))
		r.Method(http.MethodPost, "/confirm-email", mw.ChainFunc(deps.Auth.ConfirmEmail, keyAuth))
		r.Method(http.MethodPost, "/reset-password", mw.ChainFunc(deps.Auth.ResetPassword, keyAuth))
		r.Method(http.MethodPost, "/reset-password/confirm", mw.ChainFunc(deps.Auth.ResetPasswordConfirm, keyAuth))

		// Invitar es una operación de backend del tenant: secret key, nunca
		// la public.
		r.Method(http.MethodPost, "/invite", mw.ChainFunc(deps.Auth.Invite,
			mw.RequireIdentity(secretKey)))

		r.Method(http.MethodPost, "/logout", mw.ChainFunc(deps.Auth.Logout,
			mw.ResolveEnvironment(deps.Envs),
			mw.RequireIdentity(sessionSrc)))
	})

	r.Route("/v1/environments", func(r chi.Router) {
		// La sesión del caller vive en su propio environment (header);
		// el environment operado viene en la URL.
		r.Method(http.MethodPost, "/", mw.ChainFunc(deps.Environments.Create,
			mw.ResolveEnvironment(deps.Envs),
			mw.RequireIdentity(sessionSrc)))

		r.Route("/{envID}", func(r chi.Router) {
			owner := []mw.Middleware{
				mw.ResolveEnvironment(deps.Envs),
				mw.RequireIdentity(sessionSrc),
				mw.ResolveTargetEnvironment(deps.Envs),
				mw.RequireEnvironmentOwner(deps.Envs),
			}

			r.Method(http.MethodGet, "/", mw.ChainFunc(deps.Environments.Get, owner...))
			r.Method(http.MethodDelete, "/", mw.ChainFunc(deps.Environments.Delete, owner...))
			r.Method(http.MethodPost, "/rotate", mw.ChainFunc(deps.Environments.Rotate, owner...))
			r.Method(http.MethodPost, "/domains", mw.ChainFunc(deps.Environments.AddDomain, owner...))

			// Reveal muestra plaintexts: exclusivo de staff de plataforma.
			r.Method(http.MethodPost, "/reveal", mw.ChainFunc(deps.Environments.Reveal,
				mw.ResolveEnvironment(deps.Envs),
				mw.RequireIdentity(sessionSrc),
				mw.RequireStaff(),
				mw.ResolveTargetEnvironment(deps.Envs)))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
