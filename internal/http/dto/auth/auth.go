// Package auth contiene DTOs para los endpoints de autenticación.
package auth

// SignUpRequest representa el alta de un usuario en el pool del environment.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`

	// InviteToken permite el alta aunque el sign-up del environment
	// esté cerrado.
	InviteToken string `json:"invite_token,omitempty"`
}

// SignUpResponse representa la respuesta exitosa de sign-up.
type SignUpResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// LoginRequest representa la solicitud de login por password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse representa una autenticación exitosa por cualquier ruta.
// RefreshToken queda vacío si el environment no configura refresh.
type SessionResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"token_type"` // "Bearer"
	ExpiresIn        int64  `json:"expires_in"` // segundos
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
}

// MagicLinkRequest pide la emisión de un magic login link.
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// RedeemRequest canjea un token de un solo uso (magic login, refresh).
type RedeemRequest struct {
	Token string `json:"token"`
}

// InviteRequest emite una invitación para un email.
type InviteRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// ConfirmEmailRequest canjea un token de confirmación de email.
type ConfirmEmailRequest struct {
	Token string `json:"token"`
}

// ResetPasswordRequest pide el inicio del flujo de reset.
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordConfirmRequest canjea el token de reset con el password nuevo.
type ResetPasswordConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AcceptedResponse respuesta genérica de flujos out-of-band: el resultado
// real llega por email, la respuesta HTTP no revela si la cuenta existe.
type AcceptedResponse struct {
	Status string `json:"status"` // "accepted"
}
