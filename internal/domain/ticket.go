package domain

import (
	"strconv"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusAssigned      TicketStatus = "assigned"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusWaitingOnUser TicketStatus = "waiting_on_user"
	TicketStatusOnHold        TicketStatus = "on_hold"
	TicketStatusEscalated     TicketStatus = "escalated"
	TicketStatusResolved      TicketStatus = "resolved"
	TicketStatusClosed        TicketStatus = "closed"
	TicketStatusReopened      TicketStatus = "reopened"
	TicketStatusCancelled     TicketStatus = "cancelled"
	TicketStatusDuplicate     TicketStatus = "duplicate"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusWaitingOnUser,
	TicketStatusOnHold,
	TicketStatusEscalated,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusReopened,
	TicketStatusCancelled,
	TicketStatusDuplicate,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every priority from least to most urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, candidate := range TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// PersonRef is the joined projection of a profile on a ticket row.
type PersonRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NamedRef is the joined projection of a team or category.
type NamedRef struct {
	Name string `json:"name"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 string         `json:"id"`
	TicketNumber       int64          `json:"ticket_number"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Priority           TicketPriority `json:"priority"`
	Status             TicketStatus   `json:"status"`
	CreatedBy          *string        `json:"created_by"`
	AssignedAgent      *string        `json:"assigned_agent"`
	AssignedTeam       *string        `json:"assigned_team"`
	CategoryID         *string        `json:"category_id"`
	SLAResponseDue     *time.Time     `json:"sla_response_due"`
	SLAResolveDue      *time.Time     `json:"sla_resolve_due"`
	SLABreached        bool           `json:"sla_breached"`
	MergedIntoTicketID *string        `json:"merged_into_ticket_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	Creator  *PersonRef `json:"creator,omitempty"`
	Agent    *PersonRef `json:"agent,omitempty"`
	Team     *NamedRef  `json:"team,omitempty"`
	Category *NamedRef  `json:"category,omitempty"`
}

// DisplayKey renders the human-facing ticket key, e.g. SS-42.
func (t *Ticket) DisplayKey() string {
	return "SS-" + strconv.FormatInt(t.TicketNumber, 10)
}

// CreatedByActor reports whether actorID created the ticket.
func (t *Ticket) CreatedByActor(actorID string) bool {
	return t.CreatedBy != nil && *t.CreatedBy == actorID
}
