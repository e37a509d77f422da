// Package auth contiene los services de los endpoints de autenticación.
// Los controllers mapean sus errores sentinel a la taxonomía HTTP.
package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/email"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/auth"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/security/password"
	"github.com/dropDatabas3/envgate/internal/tokens"
)

// Errores sentinel que los controllers traducen a HTTP.
var (
	ErrMissingFields = errors.New("missing required fields")
	ErrSignUpClosed  = errors.New("sign-up disabled for this environment")
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// TTLs agrupa los TTLs de los tokens de un solo uso.
type TTLs struct {
	MagicLink     time.Duration
	Invite        time.Duration
	ConfirmEmail  time.Duration
	ResetPassword time.Duration
}

// Deps contiene las dependencias compartidas de los services de auth.
type Deps struct {
	Users    repository.UserRepository
	Tokens   *tokens.Service
	Sender   email.Sender
	Password password.Params
	TTLs     TTLs

	// BaseURL pública del frontend que canjea los tokens; los emails
	// llevan links armados sobre ella.
	BaseURL string
}

// link arma la URL que viaja en el email de un flujo out-of-band.
func (d Deps) link(path, token string) string {
	base := strings.TrimRight(d.BaseURL, "/")
	return base + "/auth/" + path + "?token=" + url.QueryEscape(token)
}

// sendAsync envía el email sin bloquear el request; un SMTP caído no
// voltea el alta ni filtra timing hacia el caller.
func (d Deps) sendAsync(to, subject, body string) {
	go func() {
		if err := d.Sender.Send(to, subject, body); err != nil {
			logger.L().Warn("email delivery failed",
				logger.Component("auth.email"), logger.Err(err))
		}
	}()
}

// SignUpService da de alta usuarios en el pool de un environment.
type SignUpService interface {
	SignUp(ctx context.Context, env *repository.Environment, in dto.SignUpRequest) (*dto.SignUpResponse, error)
}

// FlowsService maneja los flujos out-of-band sobre tokens de un solo uso.
type FlowsService interface {
	RequestMagicLink(ctx context.Context, env *repository.Environment, email string) error
	Invite(ctx context.Context, env *repository.Environment, in dto.InviteRequest) error
	ConfirmEmail(ctx context.Context, env *repository.Environment, token string) error
	RequestPasswordReset(ctx context.Context, env *repository.Environment, email string) error
	ConfirmPasswordReset(ctx context.Context, env *repository.Environment, token, newPassword string) error
}

// Services agrupa los services del dominio auth.
type Services struct {
	SignUp SignUpService
	Flows  FlowsService
}

// New arma los services de auth con dependencias compartidas.
func New(deps Deps) Services {
	return Services{
		SignUp: &signUpService{deps: deps},
		Flows:  &flowsService{deps: deps},
	}
}
