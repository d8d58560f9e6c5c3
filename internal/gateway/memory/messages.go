package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type messageStore struct{ g *Gateway }

func (s messageStore) Select(ctx context.Context, q gateway.MessageQuery) ([]domain.Message, error) {
	out := []domain.Message{}
	err := s.g.run(ctx, gateway.OpMessagesSelect, func(d *dataset) ([]changefeed.Signal, error) {
		for _, m := range d.messages {
			if m.TicketID != q.TicketID {
				continue
			}
			if m.IsInternal && !q.IncludeInternal {
				continue
			}
			out = append(out, d.projectMessage(m))
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s messageStore) Insert(ctx context.Context, in gateway.MessageInsert) (*domain.Message, error) {
	var out domain.Message
	err := s.g.run(ctx, gateway.OpMessagesInsert, func(d *dataset) ([]changefeed.Signal, error) {
		if _, ok := d.tickets[in.TicketID]; !ok {
			return nil, gateway.ErrNotFound
		}
		sender := in.SenderID
		m := domain.Message{
			ID:         uuid.NewString(),
			TicketID:   in.TicketID,
			SenderID:   &sender,
			Message:    in.Message,
			IsInternal: in.IsInternal,
			CreatedAt:  s.g.stamp(),
		}
		d.messages = append(d.messages, m)
		out = d.projectMessage(m)
		return []changefeed.Signal{{Table: changefeed.TableMessages, TicketID: in.TicketID}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *dataset) projectMessage(m domain.Message) domain.Message {
	m.Sender = nil
	if m.SenderID != nil {
		if p, ok := d.profiles[*m.SenderID]; ok {
			m.Sender = &domain.SenderRef{Name: p.Name, Email: p.Email, Role: p.Role}
		}
	}
	return m
}
