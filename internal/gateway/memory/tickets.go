package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type ticketStore struct{ g *Gateway }

func (s ticketStore) Select(ctx context.Context, q gateway.TicketQuery) ([]domain.Ticket, error) {
	out := []domain.Ticket{}
	err := s.g.run(ctx, gateway.OpTicketsSelect, func(d *dataset) ([]changefeed.Signal, error) {
		for _, id := range d.ticketOrder {
			t := d.tickets[id]
			if matchesTicket(t, q) {
				out = append(out, d.project(t))
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TicketNumber > out[j].TicketNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s ticketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var out domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsGet, func(d *dataset) ([]changefeed.Signal, error) {
		t, ok := d.tickets[id]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		out = d.project(t)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s ticketStore) Insert(ctx context.Context, in gateway.TicketInsert) (*domain.Ticket, error) {
	var out domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsInsert, func(d *dataset) ([]changefeed.Signal, error) {
		now := s.g.stamp()
		d.ticketSeq++
		createdBy := in.CreatedBy
		t := domain.Ticket{
			ID:             uuid.NewString(),
			TicketNumber:   d.ticketSeq,
			Title:          in.Title,
			Description:    in.Description,
			Priority:       in.Priority,
			Status:         in.Status,
			CreatedBy:      &createdBy,
			AssignedTeam:   in.AssignedTeam,
			CategoryID:     in.CategoryID,
			SLAResponseDue: in.SLAResponseDue,
			SLAResolveDue:  in.SLAResolveDue,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if t.Status == "" {
			t.Status = domain.TicketStatusOpen
		}
		if t.Priority == "" {
			t.Priority = domain.TicketPriorityMedium
		}
		d.tickets[t.ID] = t
		d.ticketOrder = append(d.ticketOrder, t.ID)
		out = d.project(t)
		return []changefeed.Signal{{Table: changefeed.TableTickets, TicketID: t.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s ticketStore) Update(ctx context.Context, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	var out domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsUpdate, func(d *dataset) ([]changefeed.Signal, error) {
		t, ok := d.tickets[id]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		patch.Apply(&t)
		t.UpdatedAt = s.g.stamp()
		d.tickets[id] = t
		out = d.project(t)
		return []changefeed.Signal{{Table: changefeed.TableTickets, TicketID: id}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func matchesTicket(t domain.Ticket, q gateway.TicketQuery) bool {
	if len(q.Statuses) > 0 && !containsValue(q.Statuses, t.Status) {
		return false
	}
	if len(q.Priorities) > 0 && !containsValue(q.Priorities, t.Priority) {
		return false
	}
	if !matchesRef(q.AssignedAgent, t.AssignedAgent) ||
		!matchesRef(q.AssignedTeam, t.AssignedTeam) ||
		!matchesRef(q.CategoryID, t.CategoryID) ||
		!matchesRef(q.CreatedBy, t.CreatedBy) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

func containsValue[T comparable](set []T, v T) bool {
	for _, candidate := range set {
		if candidate == v {
			return true
		}
	}
	return false
}

func matchesRef(want, got *string) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

// project attaches the one-hop joins a select returns.
func (d *dataset) project(t domain.Ticket) domain.Ticket {
	t.Creator, t.Agent, t.Team, t.Category = nil, nil, nil, nil
	if t.CreatedBy != nil {
		if p, ok := d.profiles[*t.CreatedBy]; ok {
			t.Creator = &domain.PersonRef{Name: p.Name, Email: p.Email}
		}
	}
	if t.AssignedAgent != nil {
		if p, ok := d.profiles[*t.AssignedAgent]; ok {
			t.Agent = &domain.PersonRef{Name: p.Name, Email: p.Email}
		}
	}
	if t.AssignedTeam != nil {
		if team, ok := d.teams[*t.AssignedTeam]; ok {
			t.Team = &domain.NamedRef{Name: team.Name}
		}
	}
	if t.CategoryID != nil {
		if c, ok := d.categories[*t.CategoryID]; ok {
			t.Category = &domain.NamedRef{Name: c.Name}
		}
	}
	return t
}
