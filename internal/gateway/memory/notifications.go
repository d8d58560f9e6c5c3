package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type notificationStore struct{ g *Gateway }

func notificationSignal(n domain.Notification) changefeed.Signal {
	s := changefeed.Signal{Table: changefeed.TableNotifications, UserID: n.UserID}
	if n.TicketID != nil {
		s.TicketID = *n.TicketID
	}
	return s
}

func (s notificationStore) Insert(ctx context.Context, in gateway.NotificationInsert) error {
	return s.g.run(ctx, gateway.OpNotificationsInsert, func(d *dataset) ([]changefeed.Signal, error) {
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			Title:     in.Title,
			Body:      in.Body,
			Type:      in.Type,
			TicketID:  in.TicketID,
			CreatedAt: s.g.stamp(),
		}
		if n.Type == "" {
			n.Type = domain.NotificationSystem
		}
		d.notifications = append(d.notifications, n)
		return []changefeed.Signal{notificationSignal(n)}, nil
	})
}

func (s notificationStore) ListForUser(ctx context.Context, userID string, q gateway.NotificationQuery) ([]domain.Notification, error) {
	out := []domain.Notification{}
	err := s.g.run(ctx, gateway.OpNotificationsList, func(d *dataset) ([]changefeed.Signal, error) {
		for i := len(d.notifications) - 1; i >= 0; i-- {
			n := d.notifications[i]
			if n.UserID != userID || (q.UnreadOnly && n.IsRead) {
				continue
			}
			out = append(out, n)
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s notificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	err := s.g.run(ctx, gateway.OpNotificationsUnread, func(d *dataset) ([]changefeed.Signal, error) {
		for _, n := range d.notifications {
			if n.UserID == userID && !n.IsRead {
				count++
			}
		}
		return nil, nil
	})
	return count, err
}

func (s notificationStore) MarkRead(ctx context.Context, userID, id string) error {
	return s.g.run(ctx, gateway.OpNotificationsMarkRead, func(d *dataset) ([]changefeed.Signal, error) {
		for i := range d.notifications {
			n := &d.notifications[i]
			if n.ID == id && n.UserID == userID {
				n.IsRead = true
				return []changefeed.Signal{notificationSignal(*n)}, nil
			}
		}
		return nil, gateway.ErrNotFound
	})
}

func (s notificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	updated := 0
	err := s.g.run(ctx, gateway.OpNotificationsMarkAll, func(d *dataset) ([]changefeed.Signal, error) {
		for i := range d.notifications {
			n := &d.notifications[i]
			if n.UserID == userID && !n.IsRead {
				n.IsRead = true
				updated++
			}
		}
		if updated == 0 {
			return nil, nil
		}
		return []changefeed.Signal{{Table: changefeed.TableNotifications, UserID: userID}}, nil
	})
	return updated, err
}

func (s notificationStore) Delete(ctx context.Context, userID, id string) error {
	return s.g.run(ctx, gateway.OpNotificationsDelete, func(d *dataset) ([]changefeed.Signal, error) {
		for i, n := range d.notifications {
			if n.ID == id && n.UserID == userID {
				d.notifications = append(d.notifications[:i:i], d.notifications[i+1:]...)
				return []changefeed.Signal{notificationSignal(n)}, nil
			}
		}
		return nil, gateway.ErrNotFound
	})
}
