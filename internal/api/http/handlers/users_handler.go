package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/dto"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// UsersHandler exposes account registration and sign-in.
type UsersHandler struct {
	auth *identity.Service
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *identity.Service) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /auth/register. Self-registered accounts are
// requesters.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.Register(c.UserContext(), identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.RoleUser,
		Org:      req.Org,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(res)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(res)})
}

func sessionResponse(res *identity.AuthResult) dto.SessionResponse {
	return dto.SessionResponse{
		User: res.Profile,
		Auth: dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
	}
}
