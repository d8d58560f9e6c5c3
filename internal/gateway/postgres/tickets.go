package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type ticketStore struct{ g *Gateway }

func (s ticketStore) Select(ctx context.Context, q gateway.TicketQuery) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(q)
	tickets := []domain.Ticket{}
	err := s.g.run(ctx, gateway.OpTicketsSelect, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, ticketSelect+where, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			ticket, err := scanTicket(rows)
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, *ticket)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s ticketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsGet, func(db querier) ([]changefeed.Signal, error) {
		var err error
		ticket, err = getTicket(ctx, db, id)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s ticketStore) Insert(ctx context.Context, in gateway.TicketInsert) (*domain.Ticket, error) {
	const query = `
        INSERT INTO tickets (title, description, priority, status, created_by, assigned_team, category_id,
                             sla_response_due, sla_resolve_due)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id::text`
	status := in.Status
	if status == "" {
		status = domain.TicketStatusOpen
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	var ticket *domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsInsert, func(db querier) ([]changefeed.Signal, error) {
		var id string
		if err := db.QueryRow(ctx, query,
			in.Title,
			in.Description,
			string(priority),
			string(status),
			in.CreatedBy,
			in.AssignedTeam,
			in.CategoryID,
			in.SLAResponseDue,
			in.SLAResolveDue,
		).Scan(&id); err != nil {
			return nil, err
		}
		var err error
		ticket, err = getTicket(ctx, db, id)
		if err != nil {
			return nil, err
		}
		return []changefeed.Signal{{Table: changefeed.TableTickets, TicketID: id}}, nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s ticketStore) Update(ctx context.Context, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	query, args := buildTicketUpdate(id, patch)
	var ticket *domain.Ticket
	err := s.g.run(ctx, gateway.OpTicketsUpdate, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
		ticket, err = getTicket(ctx, db, id)
		if err != nil {
			return nil, err
		}
		return []changefeed.Signal{{Table: changefeed.TableTickets, TicketID: id}}, nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func getTicket(ctx context.Context, db querier, id string) (*domain.Ticket, error) {
	return scanTicket(db.QueryRow(ctx, ticketSelect+" WHERE t.id = $1", id))
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t                         domain.Ticket
		priority, status          string
		creatorName, creatorEmail *string
		agentName, agentEmail     *string
		teamName, categoryName    *string
	)
	if err := row.Scan(
		&t.ID,
		&t.TicketNumber,
		&t.Title,
		&t.Description,
		&priority,
		&status,
		&t.CreatedBy,
		&t.AssignedAgent,
		&t.AssignedTeam,
		&t.CategoryID,
		&t.SLAResponseDue,
		&t.SLAResolveDue,
		&t.SLABreached,
		&t.MergedIntoTicketID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&creatorName,
		&creatorEmail,
		&agentName,
		&agentEmail,
		&teamName,
		&categoryName,
	); err != nil {
		return nil, err
	}
	t.Priority = domain.TicketPriority(priority)
	t.Status = domain.TicketStatus(status)
	t.Creator = personRef(creatorName, creatorEmail)
	t.Agent = personRef(agentName, agentEmail)
	t.Team = namedRef(teamName)
	t.Category = namedRef(categoryName)
	return &t, nil
}

func personRef(name, email *string) *domain.PersonRef {
	if name == nil {
		return nil
	}
	ref := &domain.PersonRef{Name: *name}
	if email != nil {
		ref.Email = *email
	}
	return ref
}

func namedRef(name *string) *domain.NamedRef {
	if name == nil {
		return nil
	}
	return &domain.NamedRef{Name: *name}
}
