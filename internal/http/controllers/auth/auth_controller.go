// Package auth contiene los controllers HTTP de autenticación.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/http/helpers"
	"github.com/dropDatabas3/envgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/envgate/internal/http/services/auth"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/session"
)

// Controller expone los endpoints de autenticación de un environment.
type Controller struct {
	services svc.Services
	sessions *session.Service
}

// NewController crea el controller de auth.
func NewController(services svc.Services, sessions *session.Service) *Controller {
	return &Controller{services: services, sessions: sessions}
}

// env extrae el environment resuelto por la cadena de la ruta.
func env(r *http.Request) *repository.Environment {
	if id := middlewares.GetIdentity(r.Context()); id != nil && id.Environment != nil {
		return id.Environment
	}
	return middlewares.GetEnvironment(r.Context())
}

// SignUp maneja POST /v1/auth/signup.
func (c *Controller) SignUp(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.SignUpRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.services.SignUp.SignUp(r.Context(), environment, in)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, out)
}

// Login maneja POST /v1/auth/login.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.LoginRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.sessions.AuthenticateWithPassword(r.Context(), in.Email, in.Password, environment.ID)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	writeSession(w, out)
}

// MagicLink maneja POST /v1/auth/magic-link (emisión).
func (c *Controller) MagicLink(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.MagicLinkRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	if err := c.services.Flows.RequestMagicLink(r.Context(), environment, in.Email); err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// MagicLinkRedeem maneja POST /v1/auth/magic-link/redeem.
func (c *Controller) MagicLinkRedeem(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.RedeemRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.sessions.AuthenticateWithMagicLink(r.Context(), in.Token, environment.ID)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	writeSession(w, out)
}

// Refresh maneja POST /v1/auth/refresh.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.RedeemRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.sessions.ReauthenticateWithRefreshToken(r.Context(), in.Token, environment.ID)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	writeSession(w, out)
}

// Logout maneja POST /v1/auth/logout. Requiere sesión.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	id := middlewares.GetIdentity(r.Context())
	if id == nil || id.Kind != middlewares.IdentitySession || id.Environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	if err := c.sessions.Logout(r.Context(), id.UserID, id.Environment.ID); err != nil {
		logger.From(r.Context()).Error("logout failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite maneja POST /v1/auth/invite. Requiere secret key del environment.
func (c *Controller) Invite(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.InviteRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	if err := c.services.Flows.Invite(r.Context(), environment, in); err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// ConfirmEmail maneja POST /v1/auth/confirm-email.
func (c *Controller) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.ConfirmEmailRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	if err := c.services.Flows.ConfirmEmail(r.Context(), environment, in.Token); err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword maneja POST /v1/auth/reset-password (emisión).
func (c *Controller) ResetPassword(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.ResetPasswordRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	if err := c.services.Flows.RequestPasswordReset(r.Context(), environment, in.Email); err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.AcceptedResponse{Status: "accepted"})
}

// ResetPasswordConfirm maneja POST /v1/auth/reset-password/confirm.
func (c *Controller) ResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	environment := env(r)
	if environment == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var in dto.ResetPasswordConfirmRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	if err := c.services.Flows.ConfirmPasswordReset(r.Context(), environment, in.Token, in.NewPassword); err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSession arma la respuesta de una autenticación exitosa.
func writeSession(w http.ResponseWriter, out *session.SessionTokens) {
	resp := dto.SessionResponse{
		Token:     out.Token,
		TokenType: "Bearer",
		ExpiresIn: int64(time.Until(out.TokenExpiresAt).Seconds()),
	}
	if out.RefreshToken != "" {
		resp.RefreshToken = out.RefreshToken
		resp.RefreshExpiresIn = int64(time.Until(out.RefreshExpiresAt).Seconds())
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// writeAuthError mapea errores de service a la taxonomía HTTP.
func (c *Controller) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrUnauthorized), errors.Is(err, svc.ErrInvalidToken):
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
	case errors.Is(err, svc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrBadRequest)
	case errors.Is(err, svc.ErrSignUpClosed):
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("sign-up is disabled"))
	case errors.Is(err, svc.ErrEmailTaken):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("email already registered"))
	default:
		logger.From(r.Context()).Error("auth request failed",
			logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
