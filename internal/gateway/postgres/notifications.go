package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type notificationStore struct{ g *Gateway }

func (s notificationStore) Insert(ctx context.Context, in gateway.NotificationInsert) error {
	const query = `
        INSERT INTO notifications (user_id, title, body, type, ticket_id)
        VALUES ($1,$2,$3,$4,$5)`
	kind := in.Type
	if kind == "" {
		kind = domain.NotificationSystem
	}
	return s.g.run(ctx, gateway.OpNotificationsInsert, func(db querier) ([]changefeed.Signal, error) {
		if _, err := db.Exec(ctx, query, in.UserID, in.Title, in.Body, string(kind), in.TicketID); err != nil {
			return nil, err
		}
		signal := changefeed.Signal{Table: changefeed.TableNotifications, UserID: in.UserID}
		if in.TicketID != nil {
			signal.TicketID = *in.TicketID
		}
		return []changefeed.Signal{signal}, nil
	})
}

func (s notificationStore) ListForUser(ctx context.Context, userID string, q gateway.NotificationQuery) ([]domain.Notification, error) {
	query := `
        SELECT id::text, user_id::text, title, body, type, ticket_id::text, is_read, created_at
        FROM notifications WHERE user_id = $1`
	args := []any{userID}
	if q.UnreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	notifications := []domain.Notification{}
	err := s.g.run(ctx, gateway.OpNotificationsList, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				n    domain.Notification
				kind string
			)
			if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &kind, &n.TicketID, &n.IsRead, &n.CreatedAt); err != nil {
				return nil, err
			}
			n.Type = domain.NotificationType(kind)
			notifications = append(notifications, n)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s notificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	var count int
	err := s.g.run(ctx, gateway.OpNotificationsUnread, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, userID).Scan(&count)
	})
	return count, err
}

func (s notificationStore) MarkRead(ctx context.Context, userID, id string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	return s.g.run(ctx, gateway.OpNotificationsMarkRead, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, id, userID)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
		return []changefeed.Signal{{Table: changefeed.TableNotifications, UserID: userID}}, nil
	})
}

func (s notificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`
	var updated int
	err := s.g.run(ctx, gateway.OpNotificationsMarkAll, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, userID)
		if err != nil {
			return nil, err
		}
		updated = int(cmd.RowsAffected())
		if updated == 0 {
			return nil, nil
		}
		return []changefeed.Signal{{Table: changefeed.TableNotifications, UserID: userID}}, nil
	})
	return updated, err
}

func (s notificationStore) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	return s.g.run(ctx, gateway.OpNotificationsDelete, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, id, userID)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
		return []changefeed.Signal{{Table: changefeed.TableNotifications, UserID: userID}}, nil
	})
}
