package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

const minPasswordLength = 8

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Org      *string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   domain.Profile
}

// Service registers accounts and signs them in.
type Service struct {
	gw         gateway.Gateway
	tokens     *TokenManager
	bcryptCost int
}

// NewService builds the service.
func NewService(gw gateway.Gateway, tokens *TokenManager, bcryptCost int) *Service {
	return &Service{gw: gw, tokens: tokens, bcryptCost: bcryptCost}
}

// Tokens exposes the token manager used to sign sessions.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates credentials plus a profile in one unit of work. Role
// defaults to user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = "too short"
	}
	if !role.Valid() {
		details["role"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var profile *domain.Profile
	err = s.gw.InTx(ctx, func(tx gateway.Gateway) error {
		var err error
		profile, err = tx.Directory().InsertProfile(ctx, domain.Profile{
			UserID: uuid.NewString(),
			Name:   name,
			Email:  email,
			Role:   role,
			Org:    in.Org,
		})
		if err != nil {
			return err
		}
		return tx.Accounts().Insert(ctx, domain.Account{
			UserID:       profile.UserID,
			Email:        email,
			PasswordHash: hash,
		})
	})
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewPersistenceError("register", err)
	}
	return s.issue(*profile)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.gw.Accounts().ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewPersistenceError("login", err)
	}
	if err := ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	profile, err := s.gw.Directory().Profile(ctx, account.UserID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("login", err)
	}
	return s.issue(*profile)
}

func (s *Service) issue(profile domain.Profile) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(domain.ActorFromProfile(&profile))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}
