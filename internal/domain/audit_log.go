package domain

import "time"

// AuditAction names what an actor did to a ticket.
type AuditAction string

const (
	AuditTicketCreated     AuditAction = "ticket_created"
	AuditTicketUpdated     AuditAction = "ticket_updated"
	AuditTicketAssigned    AuditAction = "ticket_assigned"
	AuditStatusChanged     AuditAction = "status_changed"
	AuditMessageSent       AuditAction = "message_sent"
	AuditInternalNoteAdded AuditAction = "internal_note_added"
)

// AuditLogEntry is an immutable audit trail entry.
type AuditLogEntry struct {
	ID         string         `json:"id"`
	ActorID    *string        `json:"actor_id"`
	TicketID   *string        `json:"ticket_id"`
	ActionType AuditAction    `json:"action_type"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditTicketCreated, AuditTicketUpdated, AuditTicketAssigned,
		AuditStatusChanged, AuditMessageSent, AuditInternalNoteAdded:
		return true
	}
	return false
}
