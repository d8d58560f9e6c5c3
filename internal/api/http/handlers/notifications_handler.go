package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/dto"
	"github.com/supportsphere/helpdesk/internal/identity"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	repos Repositories
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(repos Repositories) *NotificationsHandler {
	return &NotificationsHandler{repos: repos}
}

// List GET /notifications?unread=true.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	items, err := h.repos.Inbox(identity.SessionFromContext(c)).List(c.UserContext(), c.QueryBool("unread"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.repos.Inbox(identity.SessionFromContext(c)).UnreadCount(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UnreadCountResponse{Unread: n}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.repos.Inbox(identity.SessionFromContext(c)).MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.repos.Inbox(identity.SessionFromContext(c)).MarkAllRead(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkAllReadResponse{Updated: n}})
}

// Delete DELETE /notifications/:id.
func (h *NotificationsHandler) Delete(c *fiber.Ctx) error {
	if err := h.repos.Inbox(identity.SessionFromContext(c)).Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
