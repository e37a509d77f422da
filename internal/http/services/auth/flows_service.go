package auth

import (
	"context"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/auth"
	"github.com/dropDatabas3/envgate/internal/http/helpers"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/password"
)

type flowsService struct {
	deps Deps
}

// RequestMagicLink emite un magic login link si la cuenta existe.
// Respuesta idéntica exista o no la cuenta: el "no" solo se nota en que
// nunca llega el email.
func (s *flowsService) RequestMagicLink(ctx context.Context, env *repository.Environment, rawEmail string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.flows"),
		logger.Op("RequestMagicLink"),
		logger.EnvID(env.ID),
	)

	addr := helpers.NormalizeEmail(rawEmail)
	if addr == "" {
		return ErrMissingFields
	}

	user, err := s.deps.Users.GetByEmail(ctx, env.ID, addr)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("magic link for unknown email, swallowed")
			return nil
		}
		return err
	}
	if !user.Active {
		log.Info("magic link for disabled user, swallowed", logger.UserID(user.ID))
		return nil
	}

	token, err := s.deps.Tokens.Issue(ctx, repository.TokenMagicLogin, user.ID, s.deps.TTLs.MagicLink, &env.ID)
	if err != nil {
		return err
	}
	s.deps.sendAsync(user.Email, "Your login link",
		"Log in with this link:\n\n"+s.deps.link("magic-link/redeem", token))

	log.Info("magic link issued", logger.UserID(user.ID))
	return nil
}

// Invite emite un invite token para un email, exista o no el usuario.
// El alta posterior con ese token pasa por encima del sign-up cerrado.
func (s *flowsService) Invite(ctx context.Context, env *repository.Environment, in dto.InviteRequest) error {
	addr := helpers.NormalizeEmail(in.Email)
	if addr == "" {
		return ErrMissingFields
	}

	token, err := s.deps.Tokens.Issue(ctx, repository.TokenInviteUser, addr, s.deps.TTLs.Invite, &env.ID)
	if err != nil {
		return err
	}
	s.deps.sendAsync(addr, "You have been invited",
		"You were invited to "+env.Name+". Create your account:\n\n"+s.deps.link("signup", token))

	logger.From(ctx).Info("invite issued",
		logger.Component("auth.flows"), logger.EnvID(env.ID))
	return nil
}

// ConfirmEmail canjea el token de confirmación y marca el email verificado.
func (s *flowsService) ConfirmEmail(ctx context.Context, env *repository.Environment, raw string) error {
	tk, err := s.deps.Tokens.Consume(ctx, raw, repository.TokenConfirmEmail)
	if err != nil {
		return ErrInvalidToken
	}
	if tk.EnvironmentID == nil || *tk.EnvironmentID != env.ID {
		logger.From(ctx).Info("confirm token used cross-environment",
			logger.Component("auth.flows"), logger.EnvID(env.ID))
		return ErrInvalidToken
	}

	if err := s.deps.Users.SetEmailVerified(ctx, env.ID, tk.RelationID); err != nil {
		return err
	}
	return s.deps.Tokens.Delete(ctx, tk.ID)
}

// RequestPasswordReset emite un reset token si la cuenta existe.
// Misma política anti-enumeración que el magic link.
func (s *flowsService) RequestPasswordReset(ctx context.Context, env *repository.Environment, rawEmail string) error {
	addr := helpers.NormalizeEmail(rawEmail)
	if addr == "" {
		return ErrMissingFields
	}

	user, err := s.deps.Users.GetByEmail(ctx, env.ID, addr)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !user.Active {
		return nil
	}

	token, err := s.deps.Tokens.Issue(ctx, repository.TokenResetPassword, user.ID, s.deps.TTLs.ResetPassword, &env.ID)
	if err != nil {
		return err
	}
	s.deps.sendAsync(user.Email, "Reset your password",
		"Reset your password with this link:\n\n"+s.deps.link("reset-password/confirm", token))
	return nil
}

// ConfirmPasswordReset canjea el reset token y reemplaza el password.
// Revoca todos los refresh tokens vivos del usuario: un password nuevo
// corta las sesiones abiertas con el viejo.
func (s *flowsService) ConfirmPasswordReset(ctx context.Context, env *repository.Environment, raw, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}

	tk, err := s.deps.Tokens.Consume(ctx, raw, repository.TokenResetPassword)
	if err != nil {
		return ErrInvalidToken
	}
	if tk.EnvironmentID == nil || *tk.EnvironmentID != env.ID {
		return ErrInvalidToken
	}

	phc, err := password.Hash(s.deps.Password, newPassword)
	if err != nil {
		return err
	}
	if err := s.deps.Users.SetPasswordHash(ctx, env.ID, tk.RelationID, phc); err != nil {
		return err
	}
	if err := s.deps.Tokens.Delete(ctx, tk.ID); err != nil {
		return err
	}

	revoked, err := s.deps.Tokens.InvalidateAll(ctx, repository.TokenRefresh, tk.RelationID, env.ID)
	if err != nil {
		return err
	}
	logger.From(ctx).Info("password reset completed",
		logger.Component("auth.flows"), logger.EnvID(env.ID),
		logger.UserID(tk.RelationID), logger.Count(revoked))
	return nil
}
