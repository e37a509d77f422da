package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/auth"
	"github.com/dropDatabas3/envgate/internal/http/helpers"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/password"
)

type signUpService struct {
	deps Deps
}

// SignUp crea un usuario en el pool del environment.
//
// Si el sign-up del environment está cerrado, solo se acepta con un invite
// token vivo emitido para ese email en ese environment. El alta dispara el
// flujo de confirmación de email.
func (s *signUpService) SignUp(ctx context.Context, env *repository.Environment, in dto.SignUpRequest) (*dto.SignUpResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.signup"),
		logger.EnvID(env.ID),
	)

	in.Email = helpers.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	invited := false
	if in.InviteToken != "" {
		tk, err := s.deps.Tokens.Consume(ctx, in.InviteToken, repository.TokenInviteUser)
		if err != nil {
			log.Debug("invite token rejected", logger.Err(err))
			return nil, ErrInvalidToken
		}
		// La invitación es por email y por environment.
		if tk.EnvironmentID == nil || *tk.EnvironmentID != env.ID || tk.RelationID != in.Email {
			log.Info("invite token used outside its scope")
			return nil, ErrInvalidToken
		}
		if err := s.deps.Tokens.Delete(ctx, tk.ID); err != nil {
			return nil, err
		}
		invited = true
	}

	if !env.SignUpEnabled && !invited {
		return nil, ErrSignUpClosed
	}

	phc, err := password.Hash(s.deps.Password, in.Password)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		ID:            uuid.NewString(),
		EnvironmentID: env.ID,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  &phc,
		Active:        true,
		EmailVerified: invited, // el invite ya probó control del mailbox
	}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		if repository.IsConflict(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if !user.EmailVerified {
		token, err := s.deps.Tokens.Issue(ctx, repository.TokenConfirmEmail, user.ID, s.deps.TTLs.ConfirmEmail, &env.ID)
		if err != nil {
			return nil, err
		}
		s.deps.sendAsync(user.Email, "Confirm your email",
			"Confirm your email address:\n\n"+s.deps.link("confirm-email", token))
	}

	log.Info("user signed up", logger.UserID(user.ID))
	return &dto.SignUpResponse{UserID: user.ID, Email: user.Email}, nil
}
