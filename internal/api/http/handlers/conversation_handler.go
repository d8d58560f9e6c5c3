package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/dto"
	"github.com/supportsphere/helpdesk/internal/conversation"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// ConversationHandler serves a ticket with its message thread.
type ConversationHandler struct {
	repos Repositories
}

// NewConversationHandler constructs handler.
func NewConversationHandler(repos Repositories) *ConversationHandler {
	return &ConversationHandler{repos: repos}
}

// GetTicket GET /tickets/:id.
func (h *ConversationHandler) GetTicket(c *fiber.Ctx) error {
	repo := h.repos.Conversation(identity.SessionFromContext(c), c.Params("id"))
	repo.Refresh(c.UserContext())
	snap := repo.Snapshot()
	if snap.Error != "" {
		return apperrors.NewDomainError(apperrors.CodePersistence, snap.Error, http.StatusBadGateway, nil)
	}
	if snap.Ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": dto.ConversationResponse{Ticket: snap.Ticket, Messages: snap.Messages}})
}

// ListMessages GET /tickets/:id/messages.
func (h *ConversationHandler) ListMessages(c *fiber.Ctx) error {
	repo := h.repos.Conversation(identity.SessionFromContext(c), c.Params("id"))
	repo.RefreshMessages(c.UserContext())
	snap := repo.Snapshot()
	if snap.Error == conversation.MessagesFetchError {
		return apperrors.NewDomainError(apperrors.CodePersistence, snap.Error, http.StatusBadGateway, nil)
	}
	return c.JSON(fiber.Map{"data": snap.Messages})
}

// SendMessage POST /tickets/:id/messages.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	repo := h.repos.Conversation(identity.SessionFromContext(c), c.Params("id"))
	msg, err := repo.SendMessage(c.UserContext(), req.Message, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": msg})
}
