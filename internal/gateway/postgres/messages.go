package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

const messageSelect = `
        SELECT m.id::text, m.ticket_id::text, m.sender_id::text, m.message, m.is_internal, m.created_at,
               p.name, p.email, p.role
        FROM ticket_messages m
        LEFT JOIN profiles p ON p.user_id = m.sender_id`

type messageStore struct{ g *Gateway }

func (s messageStore) Select(ctx context.Context, q gateway.MessageQuery) ([]domain.Message, error) {
	query := messageSelect + " WHERE m.ticket_id = $1"
	if !q.IncludeInternal {
		query += " AND NOT m.is_internal"
	}
	query += " ORDER BY m.created_at ASC, m.id ASC"

	messages := []domain.Message{}
	err := s.g.run(ctx, gateway.OpMessagesSelect, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, q.TicketID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			msg, err := scanMessage(rows)
			if err != nil {
				return nil, err
			}
			messages = append(messages, *msg)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s messageStore) Insert(ctx context.Context, in gateway.MessageInsert) (*domain.Message, error) {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_id, message, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id::text`
	var msg *domain.Message
	err := s.g.run(ctx, gateway.OpMessagesInsert, func(db querier) ([]changefeed.Signal, error) {
		var id string
		if err := db.QueryRow(ctx, query, in.TicketID, in.SenderID, in.Message, in.IsInternal).Scan(&id); err != nil {
			return nil, err
		}
		var err error
		msg, err = scanMessage(db.QueryRow(ctx, messageSelect+" WHERE m.id = $1", id))
		if err != nil {
			return nil, err
		}
		return []changefeed.Signal{{Table: changefeed.TableMessages, TicketID: in.TicketID}}, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m                 domain.Message
		name, email, role *string
	)
	if err := row.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Message, &m.IsInternal, &m.CreatedAt, &name, &email, &role); err != nil {
		return nil, err
	}
	if name != nil {
		m.Sender = &domain.SenderRef{Name: *name}
		if email != nil {
			m.Sender.Email = *email
		}
		if role != nil {
			m.Sender.Role = domain.Role(*role)
		}
	}
	return &m, nil
}
