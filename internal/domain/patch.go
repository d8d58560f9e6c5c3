package domain

import "time"

// Field is a tri-state patch value: absent, set to a value, or cleared.
type Field[T any] struct {
	Present bool
	Value   *T
}

// Set returns a field that writes v.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: &v}
}

// SetPtr returns a field that writes *v, or clears the column when v is nil.
func SetPtr[T any](v *T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

// Clear returns a field that writes NULL.
func Clear[T any]() Field[T] {
	return Field[T]{Present: true}
}

// detail renders the field for audit details; cleared fields become nil.
func (f Field[T]) detail() any {
	if f.Value == nil {
		return nil
	}
	return *f.Value
}

// TicketPatch is an arbitrary partial update of a ticket row.
type TicketPatch struct {
	Title              Field[string]
	Description        Field[string]
	Priority           Field[TicketPriority]
	Status             Field[TicketStatus]
	AssignedAgent      Field[string]
	AssignedTeam       Field[string]
	CategoryID         Field[string]
	SLAResponseDue     Field[time.Time]
	SLAResolveDue      Field[time.Time]
	SLABreached        Field[bool]
	MergedIntoTicketID Field[string]
}

// IsEmpty reports whether the patch changes nothing.
func (p TicketPatch) IsEmpty() bool {
	return len(p.Details()) == 0
}

// Details returns the patch as column -> value, used as opaque audit detail.
func (p TicketPatch) Details() map[string]any {
	out := map[string]any{}
	add := func(column string, present bool, value any) {
		if present {
			out[column] = value
		}
	}
	add("title", p.Title.Present, p.Title.detail())
	add("description", p.Description.Present, p.Description.detail())
	add("priority", p.Priority.Present, p.Priority.detail())
	add("status", p.Status.Present, p.Status.detail())
	add("assigned_agent", p.AssignedAgent.Present, p.AssignedAgent.detail())
	add("assigned_team", p.AssignedTeam.Present, p.AssignedTeam.detail())
	add("category_id", p.CategoryID.Present, p.CategoryID.detail())
	add("sla_response_due", p.SLAResponseDue.Present, p.SLAResponseDue.detail())
	add("sla_resolve_due", p.SLAResolveDue.Present, p.SLAResolveDue.detail())
	add("sla_breached", p.SLABreached.Present, p.SLABreached.detail())
	add("merged_into_ticket_id", p.MergedIntoTicketID.Present, p.MergedIntoTicketID.detail())
	return out
}

// Apply writes the present fields of p onto t.
func (p TicketPatch) Apply(t *Ticket) {
	if p.Title.Present && p.Title.Value != nil {
		t.Title = *p.Title.Value
	}
	if p.Description.Present && p.Description.Value != nil {
		t.Description = *p.Description.Value
	}
	if p.Priority.Present && p.Priority.Value != nil {
		t.Priority = *p.Priority.Value
	}
	if p.Status.Present && p.Status.Value != nil {
		t.Status = *p.Status.Value
	}
	if p.AssignedAgent.Present {
		t.AssignedAgent = cloneString(p.AssignedAgent.Value)
	}
	if p.AssignedTeam.Present {
		t.AssignedTeam = cloneString(p.AssignedTeam.Value)
	}
	if p.CategoryID.Present {
		t.CategoryID = cloneString(p.CategoryID.Value)
	}
	if p.SLAResponseDue.Present {
		t.SLAResponseDue = cloneTime(p.SLAResponseDue.Value)
	}
	if p.SLAResolveDue.Present {
		t.SLAResolveDue = cloneTime(p.SLAResolveDue.Value)
	}
	if p.SLABreached.Present {
		t.SLABreached = p.SLABreached.Value != nil && *p.SLABreached.Value
	}
	if p.MergedIntoTicketID.Present {
		t.MergedIntoTicketID = cloneString(p.MergedIntoTicketID.Value)
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
