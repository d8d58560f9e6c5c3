package dto

import (
	"time"

	"github.com/supportsphere/helpdesk/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Org      *string `json:"org"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse pairs the signed-in profile with its token.
type SessionResponse struct {
	User domain.Profile `json:"user"`
	Auth AuthResponse   `json:"auth"`
}
