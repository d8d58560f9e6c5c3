// Package fanout records the audit-log and notification side effects that
// follow every ticket and message write.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

// Kind identifies the side-effect table an Effect writes to.
type Kind string

const (
	KindAuditLog     Kind = "audit_log"
	KindNotification Kind = "notification"
)

const previewLength = 100

// Effect is one secondary write. Exactly one of Audit or Notification is set.
type Effect struct {
	Kind         Kind                        `json:"kind"`
	Audit        *gateway.AuditInsert        `json:"audit,omitempty"`
	Notification *gateway.NotificationInsert `json:"notification,omitempty"`
}

// TicketID returns the ticket the effect concerns, or "".
func (e Effect) TicketID() string {
	var id *string
	switch {
	case e.Audit != nil:
		id = e.Audit.TicketID
	case e.Notification != nil:
		id = e.Notification.TicketID
	}
	if id == nil {
		return ""
	}
	return *id
}

// Action names the effect for logging.
func (e Effect) Action() string {
	switch {
	case e.Audit != nil:
		return string(e.Audit.ActionType)
	case e.Notification != nil:
		return string(e.Notification.Type)
	}
	return string(e.Kind)
}

// Encode serializes e for the outbox.
func (e Effect) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an outbox payload.
func Decode(payload []byte) (Effect, error) {
	var e Effect
	if err := json.Unmarshal(payload, &e); err != nil {
		return Effect{}, err
	}
	if err := e.validate(); err != nil {
		return Effect{}, err
	}
	return e, nil
}

func (e Effect) validate() error {
	switch e.Kind {
	case KindAuditLog:
		if e.Audit == nil {
			return fmt.Errorf("fanout: %s effect without audit payload", e.Kind)
		}
	case KindNotification:
		if e.Notification == nil {
			return fmt.Errorf("fanout: %s effect without notification payload", e.Kind)
		}
	default:
		return fmt.Errorf("fanout: unknown effect kind %q", e.Kind)
	}
	return nil
}

// Apply performs the secondary write against gw.
func Apply(ctx context.Context, gw gateway.Gateway, e Effect) error {
	if err := e.validate(); err != nil {
		return err
	}
	switch e.Kind {
	case KindAuditLog:
		return gw.AuditLogs().Insert(ctx, *e.Audit)
	default:
		return gw.Notifications().Insert(ctx, *e.Notification)
	}
}

func audit(actorID, ticketID string, action domain.AuditAction, details map[string]any) Effect {
	return Effect{
		Kind: KindAuditLog,
		Audit: &gateway.AuditInsert{
			ActorID:    &actorID,
			TicketID:   &ticketID,
			ActionType: action,
			Details:    details,
		},
	}
}

func notify(userID, ticketID, title, body string, kind domain.NotificationType) Effect {
	return Effect{
		Kind: KindNotification,
		Notification: &gateway.NotificationInsert{
			UserID:   userID,
			Title:    title,
			Body:     body,
			Type:     kind,
			TicketID: &ticketID,
		},
	}
}

func ticketRef(t *domain.Ticket) string {
	return "#" + strconv.FormatInt(t.TicketNumber, 10)
}

// TicketCreated returns the effects of creating t.
func TicketCreated(actorID string, t *domain.Ticket) []Effect {
	return []Effect{
		audit(actorID, t.ID, domain.AuditTicketCreated, map[string]any{
			"title":    t.Title,
			"priority": string(t.Priority),
		}),
		notify(actorID, t.ID, "Ticket Created",
			`Your ticket "`+t.Title+`" has been created successfully.`,
			domain.NotificationTicketCreated),
	}
}

// TicketUpdated returns the effects of applying patch to ticketID.
func TicketUpdated(actorID, ticketID string, patch domain.TicketPatch) []Effect {
	return []Effect{audit(actorID, ticketID, domain.AuditTicketUpdated, patch.Details())}
}

// TicketAssigned returns the effects of assigning t. team is only recorded
// when the assignment touched it.
func TicketAssigned(actorID string, t *domain.Ticket, agentID *string, teamID *string, teamChanged bool) []Effect {
	details := map[string]any{"assigned_agent": derefOrNil(agentID)}
	if teamChanged {
		details["assigned_team"] = derefOrNil(teamID)
	}
	effects := []Effect{audit(actorID, t.ID, domain.AuditTicketAssigned, details)}
	if agentID != nil {
		effects = append(effects, notify(*agentID, t.ID, "Ticket Assigned",
			"You have been assigned to ticket "+ticketRef(t),
			domain.NotificationTicketAssigned))
	}
	return effects
}

// StatusChanged returns the effects of moving t to status. The creator is
// notified unless they made the change.
func StatusChanged(actorID string, t *domain.Ticket, status domain.TicketStatus) []Effect {
	effects := []Effect{audit(actorID, t.ID, domain.AuditStatusChanged, map[string]any{
		"new_status": string(status),
	})}
	if t.CreatedBy != nil && *t.CreatedBy != actorID {
		effects = append(effects, notify(*t.CreatedBy, t.ID, "Ticket Status Updated",
			fmt.Sprintf("Your ticket %s status changed to %s", ticketRef(t), status),
			domain.NotificationTicketUpdated))
	}
	return effects
}

// MessageSent returns the effects of posting text on t. Internal notes never
// notify anyone; public replies notify the other party.
func MessageSent(actorID string, t *domain.Ticket, text string, internal bool) []Effect {
	action := domain.AuditMessageSent
	if internal {
		action = domain.AuditInternalNoteAdded
	}
	effects := []Effect{audit(actorID, t.ID, action, map[string]any{
		"message_preview": Preview(text),
	})}
	if internal {
		return effects
	}

	var recipient *string
	if t.CreatedByActor(actorID) {
		recipient = t.AssignedAgent
	} else {
		recipient = t.CreatedBy
	}
	if recipient != nil && *recipient != "" {
		effects = append(effects, notify(*recipient, t.ID, "New Message",
			"New reply on ticket "+ticketRef(t),
			domain.NotificationTicketMessage))
	}
	return effects
}

// Preview truncates text to its first 100 characters.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
