package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/dto"
	"github.com/supportsphere/helpdesk/internal/audit"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// DirectoryHandler exposes profile, team and category lookups plus the
// admin-only endpoints.
type DirectoryHandler struct {
	repos Repositories
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(repos Repositories) *DirectoryHandler {
	return &DirectoryHandler{repos: repos}
}

// Me GET /me.
func (h *DirectoryHandler) Me(c *fiber.Ctx) error {
	p, err := h.repos.Directory(identity.SessionFromContext(c)).Me(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": p})
}

// Profile GET /directory/profiles/:id.
func (h *DirectoryHandler) Profile(c *fiber.Ctx) error {
	p, err := h.repos.Directory(identity.SessionFromContext(c)).Profile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": p})
}

// Agents GET /directory/agents.
func (h *DirectoryHandler) Agents(c *fiber.Ctx) error {
	out, err := h.repos.Directory(identity.SessionFromContext(c)).Agents(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

// Teams GET /directory/teams.
func (h *DirectoryHandler) Teams(c *fiber.Ctx) error {
	out, err := h.repos.Directory(identity.SessionFromContext(c)).Teams(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

// Categories GET /directory/categories.
func (h *DirectoryHandler) Categories(c *fiber.Ctx) error {
	out, err := h.repos.Directory(identity.SessionFromContext(c)).Categories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

// CreateTeam POST /admin/teams.
func (h *DirectoryHandler) CreateTeam(c *fiber.Ctx) error {
	var req dto.CreateNamedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	team, err := h.repos.Directory(identity.SessionFromContext(c)).CreateTeam(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": team})
}

// CreateCategory POST /admin/categories.
func (h *DirectoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CreateNamedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.repos.Directory(identity.SessionFromContext(c)).CreateCategory(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": category})
}

// TeamMembers GET /directory/teams/:id/members.
func (h *DirectoryHandler) TeamMembers(c *fiber.Ctx) error {
	out, err := h.repos.Directory(identity.SessionFromContext(c)).TeamMembers(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

// UpdateTeam PUT /admin/teams/:id.
func (h *DirectoryHandler) UpdateTeam(c *fiber.Ctx) error {
	var req dto.CreateNamedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	team, err := h.repos.Directory(identity.SessionFromContext(c)).UpdateTeam(c.UserContext(), c.Params("id"), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": team})
}

// DeleteTeam DELETE /admin/teams/:id.
func (h *DirectoryHandler) DeleteTeam(c *fiber.Ctx) error {
	if err := h.repos.Directory(identity.SessionFromContext(c)).DeleteTeam(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddTeamMember POST /admin/teams/:id/members.
func (h *DirectoryHandler) AddTeamMember(c *fiber.Ctx) error {
	var req dto.AddTeamMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.repos.Directory(identity.SessionFromContext(c)).AddTeamMember(c.UserContext(), c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": member})
}

// RemoveTeamMember DELETE /admin/teams/:id/members/:memberId.
func (h *DirectoryHandler) RemoveTeamMember(c *fiber.Ctx) error {
	err := h.repos.Directory(identity.SessionFromContext(c)).RemoveTeamMember(c.UserContext(), c.Params("id"), c.Params("memberId"))
	if err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpdateCategory PUT /admin/categories/:id.
func (h *DirectoryHandler) UpdateCategory(c *fiber.Ctx) error {
	var req dto.CreateNamedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.repos.Directory(identity.SessionFromContext(c)).UpdateCategory(c.UserContext(), c.Params("id"), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": category})
}

// DeleteCategory DELETE /admin/categories/:id.
func (h *DirectoryHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.repos.Directory(identity.SessionFromContext(c)).DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Users GET /admin/users.
func (h *DirectoryHandler) Users(c *fiber.Ctx) error {
	out, err := h.repos.Directory(identity.SessionFromContext(c)).Users(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

// SetRole PUT /admin/users/:id/role.
func (h *DirectoryHandler) SetRole(c *fiber.Ctx) error {
	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	p, err := h.repos.Directory(identity.SessionFromContext(c)).SetRole(c.UserContext(), c.Params("id"), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": p})
}

// AuditLogs GET /admin/audit-logs.
func (h *DirectoryHandler) AuditLogs(c *fiber.Ctx) error {
	entries, err := h.repos.Audit(identity.SessionFromContext(c)).List(c.UserContext(), audit.Query{
		TicketID:   c.Query("ticket_id"),
		ActionType: domain.AuditAction(c.Query("action_type")),
		Limit:      c.QueryInt("limit"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}
