package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/dto"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/ticket"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket list and lifecycle endpoints.
type TicketsHandler struct {
	repos Repositories
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(repos Repositories) *TicketsHandler {
	return &TicketsHandler{repos: repos}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	repo := h.repos.Tickets(identity.SessionFromContext(c))
	tickets, err := repo.List(c.UserContext(), parseTicketFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketListResponse{Data: tickets, Count: len(tickets)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	repo := h.repos.Tickets(identity.SessionFromContext(c))
	created, err := repo.Create(c.UserContext(), ticket.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		CategoryID:     req.CategoryID,
		AssignedTeam:   req.AssignedTeam,
		SLAResponseDue: req.SLAResponseDue,
		SLAResolveDue:  req.SLAResolveDue,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": created})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	patch, err := dto.ParseTicketPatch(c.Body())
	if err != nil {
		return err
	}
	repo := h.repos.Tickets(identity.SessionFromContext(c))
	updated, err := repo.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var opts []ticket.AssignOption
	changed, team, err := req.TeamChange()
	if err != nil {
		return err
	}
	if changed {
		opts = append(opts, ticket.WithTeam(team))
	}
	repo := h.repos.Tickets(identity.SessionFromContext(c))
	updated, err := repo.Assign(c.UserContext(), c.Params("id"), req.AssignedAgent, opts...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	repo := h.repos.Tickets(identity.SessionFromContext(c))
	updated, err := repo.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// AllowedTransitions GET /tickets/statuses/:status/transitions.
func (h *TicketsHandler) AllowedTransitions(c *fiber.Ctx) error {
	status := domain.TicketStatus(c.Params("status"))
	if !status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	return c.JSON(fiber.Map{"data": domain.AllowedTransitions(status)})
}

func parseTicketFilter(c *fiber.Ctx) ticket.Filter {
	filter := ticket.Filter{Search: c.Query("search")}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(part))
	}
	filter.AssignedAgent = optionalQuery(c, "assigned_agent")
	filter.AssignedTeam = optionalQuery(c, "assigned_team")
	filter.CategoryID = optionalQuery(c, "category_id")
	return filter
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}
