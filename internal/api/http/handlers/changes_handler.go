package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/observability"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

const keepAliveInterval = 15 * time.Second

// ChangesHandler streams change signals as server-sent events so clients can
// refetch.
type ChangesHandler struct {
	feed   changefeed.Feed
	gw     gateway.Gateway
	logger *zap.Logger
}

// NewChangesHandler constructs handler.
func NewChangesHandler(repos Repositories) *ChangesHandler {
	return &ChangesHandler{feed: repos.Feed, gw: repos.Gateway, logger: observability.OrNop(repos.Logger)}
}

// Stream GET /changes?table=tickets|ticket_messages|notifications&ticket_id=.
// Notification streams are always scoped to the caller. Requesters may only
// follow the threads of tickets they can view.
func (h *ChangesHandler) Stream(c *fiber.Ctx) error {
	actor, ok := identity.SessionFromContext(c).Actor()
	if !ok {
		return apperrors.NewAuthRequired()
	}

	topic := changefeed.Topic{Table: c.Query("table", changefeed.TableTickets), TicketID: c.Query("ticket_id")}
	switch topic.Table {
	case changefeed.TableTickets, changefeed.TableMessages:
	case changefeed.TableNotifications:
		topic.UserID = actor.ID
	default:
		return apperrors.NewValidationError("unknown table", map[string]any{"table": topic.Table})
	}
	if err := h.authorize(c.UserContext(), actor, topic); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.feed.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return apperrors.NewInternalError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	payload, err := changefeed.EncodeSignal(changefeed.Signal{Table: topic.Table, TicketID: topic.TicketID, UserID: topic.UserID})
	if err != nil {
		sub.Close()
		cancel()
		return apperrors.NewInternalError(err)
	}

	logger := h.logger.With(zap.String("actor_id", actor.ID), zap.String("table", topic.Table))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		if writeEvent(w, "ready", payload) != nil {
			return
		}
		for {
			select {
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(w, "change", payload); err != nil {
					logger.Debug("change stream closed", zap.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func (h *ChangesHandler) authorize(ctx context.Context, actor domain.Actor, topic changefeed.Topic) error {
	if actor.Role.IsStaff() || topic.Table == changefeed.TableNotifications {
		return nil
	}
	if topic.TicketID == "" {
		if topic.Table == changefeed.TableMessages {
			return apperrors.NewValidationError("ticket_id is required", map[string]any{"ticket_id": "required"})
		}
		return nil
	}
	t, err := h.gw.Tickets().Get(ctx, topic.TicketID)
	if err != nil && !gateway.IsNotFound(err) {
		return apperrors.NewPersistenceError("get ticket", err)
	}
	if t == nil || !actor.CanView(t) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": topic.TicketID})
	}
	return nil
}

func writeEvent(w *bufio.Writer, event string, payload []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}
