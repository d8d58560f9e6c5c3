package postgres

import (
	"fmt"
	"strings"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

const ticketSelect = `
        SELECT t.id::text, t.ticket_number, t.title, t.description, t.priority, t.status,
               t.created_by::text, t.assigned_agent::text, t.assigned_team::text, t.category_id::text,
               t.sla_response_due, t.sla_resolve_due, t.sla_breached, t.merged_into_ticket_id::text,
               t.created_at, t.updated_at,
               creator.name, creator.email, agent.name, agent.email, team.name, category.name
        FROM tickets t
        LEFT JOIN profiles creator ON creator.user_id = t.created_by
        LEFT JOIN profiles agent ON agent.user_id = t.assigned_agent
        LEFT JOIN teams team ON team.id = t.assigned_team
        LEFT JOIN categories category ON category.id = t.category_id`

// buildTicketWhere renders q as a WHERE clause with $n placeholders.
func buildTicketWhere(q gateway.TicketQuery) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, status := range q.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(q.Priorities) > 0 {
		placeholders := make([]string, len(q.Priorities))
		for i, priority := range q.Priorities {
			args = append(args, string(priority))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	for _, ref := range []struct {
		column string
		value  *string
	}{
		{"t.assigned_agent", q.AssignedAgent},
		{"t.assigned_team", q.AssignedTeam},
		{"t.category_id", q.CategoryID},
		{"t.created_by", q.CreatedBy},
	} {
		if ref.value == nil {
			continue
		}
		args = append(args, *ref.value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", ref.column, len(args)))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		clauses = append(clauses, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", len(args), len(args)))
	}

	sql := " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY t.created_at DESC, t.ticket_number DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildTicketUpdate renders the present fields of patch as an UPDATE.
func buildTicketUpdate(id string, patch domain.TicketPatch) (string, []any) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title.Present {
		add("title", patch.Title.Value)
	}
	if patch.Description.Present {
		add("description", patch.Description.Value)
	}
	if patch.Priority.Present {
		add("priority", enumValue(patch.Priority.Value))
	}
	if patch.Status.Present {
		add("status", enumValue(patch.Status.Value))
	}
	if patch.AssignedAgent.Present {
		add("assigned_agent", patch.AssignedAgent.Value)
	}
	if patch.AssignedTeam.Present {
		add("assigned_team", patch.AssignedTeam.Value)
	}
	if patch.CategoryID.Present {
		add("category_id", patch.CategoryID.Value)
	}
	if patch.SLAResponseDue.Present {
		add("sla_response_due", patch.SLAResponseDue.Value)
	}
	if patch.SLAResolveDue.Present {
		add("sla_resolve_due", patch.SLAResolveDue.Value)
	}
	if patch.SLABreached.Present {
		breached := patch.SLABreached.Value != nil && *patch.SLABreached.Value
		add("sla_breached", breached)
	}
	if patch.MergedIntoTicketID.Present {
		add("merged_into_ticket_id", patch.MergedIntoTicketID.Value)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	sql := fmt.Sprintf("UPDATE tickets SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return sql, args
}

func enumValue[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
