package domain

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTicketCreated   NotificationType = "ticket_created"
	NotificationTicketAssigned  NotificationType = "ticket_assigned"
	NotificationTicketUpdated   NotificationType = "ticket_updated"
	NotificationTicketMessage   NotificationType = "ticket_message"
	NotificationTicketResolved  NotificationType = "ticket_resolved"
	NotificationTicketEscalated NotificationType = "ticket_escalated"
	NotificationSLAWarning      NotificationType = "sla_warning"
	NotificationSLABreached     NotificationType = "sla_breached"
	NotificationSystem          NotificationType = "system"
)

// Notification is a per-recipient message about a ticket.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	TicketID  *string          `json:"ticket_id"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
