package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/supportsphere/helpdesk/internal/domain"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	CategoryID     *string               `json:"category_id"`
	AssignedTeam   *string               `json:"assigned_team"`
	SLAResponseDue *time.Time            `json:"sla_response_due"`
	SLAResolveDue  *time.Time            `json:"sla_resolve_due"`
}

// AssignTicketRequest payload. A null or missing agent unassigns the ticket;
// the team is only changed when the key is present.
type AssignTicketRequest struct {
	AssignedAgent *string         `json:"assigned_agent"`
	AssignedTeam  json.RawMessage `json:"assigned_team"`
}

// TeamChange reports whether the team key was sent and the value to set.
func (r AssignTicketRequest) TeamChange() (bool, *string, error) {
	if len(r.AssignedTeam) == 0 {
		return false, nil, nil
	}
	if isNull(r.AssignedTeam) {
		return true, nil, nil
	}
	var team string
	if err := json.Unmarshal(r.AssignedTeam, &team); err != nil {
		return false, nil, apperrors.NewValidationError("invalid payload", map[string]any{"assigned_team": "must be a string or null"})
	}
	return true, &team, nil
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketListResponse wraps a ticket page.
type TicketListResponse struct {
	Data  []domain.Ticket `json:"data"`
	Count int             `json:"count"`
}

// ParseTicketPatch decodes a partial update. Absent keys are left unchanged,
// null clears a column and unknown keys are rejected.
func ParseTicketPatch(body []byte) (domain.TicketPatch, error) {
	var patch domain.TicketPatch
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return patch, apperrors.NewValidationError("invalid payload", nil)
	}

	details := map[string]any{}
	for key, value := range raw {
		var err error
		switch key {
		case "title":
			patch.Title, err = decodeField[string](value)
		case "description":
			patch.Description, err = decodeField[string](value)
		case "priority":
			patch.Priority, err = decodeField[domain.TicketPriority](value)
		case "status":
			patch.Status, err = decodeField[domain.TicketStatus](value)
		case "assigned_agent":
			patch.AssignedAgent, err = decodeField[string](value)
		case "assigned_team":
			patch.AssignedTeam, err = decodeField[string](value)
		case "category_id":
			patch.CategoryID, err = decodeField[string](value)
		case "sla_response_due":
			patch.SLAResponseDue, err = decodeField[time.Time](value)
		case "sla_resolve_due":
			patch.SLAResolveDue, err = decodeField[time.Time](value)
		case "sla_breached":
			patch.SLABreached, err = decodeField[bool](value)
		case "merged_into_ticket_id":
			patch.MergedIntoTicketID, err = decodeField[string](value)
		default:
			err = errors.New("unknown field")
		}
		if err != nil {
			details[key] = err.Error()
		}
	}
	if len(details) > 0 {
		return domain.TicketPatch{}, apperrors.NewValidationError("invalid payload", details)
	}
	return patch, nil
}

func decodeField[T any](raw json.RawMessage) (domain.Field[T], error) {
	if isNull(raw) {
		return domain.Clear[T](), nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Field[T]{}, errors.New("invalid value")
	}
	return domain.Set(v), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
