// Package gateway defines the persistence contract the repositories talk to.
// Implementations live in the postgres and memory subpackages.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/supportsphere/helpdesk/internal/domain"
)

var (
	// ErrNotFound is returned when a single-row lookup misses.
	ErrNotFound = errors.New("gateway: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("gateway: conflict")
)

// Operation names, used for failure reporting and metrics labels.
const (
	OpTicketsSelect         = "tickets.select"
	OpTicketsGet            = "tickets.get"
	OpTicketsInsert         = "tickets.insert"
	OpTicketsUpdate         = "tickets.update"
	OpMessagesSelect        = "messages.select"
	OpMessagesInsert        = "messages.insert"
	OpAuditInsert           = "audit_logs.insert"
	OpAuditList             = "audit_logs.list"
	OpNotificationsInsert   = "notifications.insert"
	OpNotificationsList     = "notifications.list"
	OpNotificationsUnread   = "notifications.count_unread"
	OpNotificationsMarkRead = "notifications.mark_read"
	OpNotificationsMarkAll  = "notifications.mark_all_read"
	OpNotificationsDelete   = "notifications.delete"
	OpDirectoryProfile      = "directory.profile"
	OpDirectoryProfiles     = "directory.list_profiles"
	OpDirectoryInsert       = "directory.insert_profile"
	OpDirectoryTeams        = "directory.teams"
	OpDirectoryCategories   = "directory.categories"
	OpDirectoryInsertTeam   = "directory.insert_team"
	OpDirectoryInsertCat    = "directory.insert_category"
	OpDirectoryUpdateTeam   = "directory.update_team"
	OpDirectoryDeleteTeam   = "directory.delete_team"
	OpDirectoryMembers      = "directory.team_members"
	OpDirectoryAddMember    = "directory.add_team_member"
	OpDirectoryRemoveMember = "directory.remove_team_member"
	OpDirectoryUpdateCat    = "directory.update_category"
	OpDirectoryDeleteCat    = "directory.delete_category"
	OpDirectorySetRole      = "directory.set_role"
	OpAccountsInsert        = "accounts.insert"
	OpAccountsGet           = "accounts.get"
	OpOutboxEnqueue         = "outbox.enqueue"
	OpOutboxClaim           = "outbox.claim"
	OpOutboxComplete        = "outbox.complete"
	OpOutboxFail            = "outbox.fail"
)

// TicketQuery is a conjunction of optional constraints. Empty slices and nil
// pointers do not constrain; Search matches title or description
// case-insensitively.
type TicketQuery struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	AssignedAgent *string
	AssignedTeam  *string
	CategoryID    *string
	CreatedBy     *string
	Search        string
	Limit         int
}

// TicketInsert is the payload for a new ticket row.
type TicketInsert struct {
	Title          string
	Description    string
	Priority       domain.TicketPriority
	Status         domain.TicketStatus
	CreatedBy      string
	AssignedTeam   *string
	CategoryID     *string
	SLAResponseDue *time.Time
	SLAResolveDue  *time.Time
}

// MessageQuery selects a ticket thread.
type MessageQuery struct {
	TicketID        string
	IncludeInternal bool
}

// MessageInsert is the payload for a new message row.
type MessageInsert struct {
	TicketID   string
	SenderID   string
	Message    string
	IsInternal bool
}

// AuditInsert is the payload for an audit log row.
type AuditInsert struct {
	ActorID    *string            `json:"actor_id"`
	TicketID   *string            `json:"ticket_id"`
	ActionType domain.AuditAction `json:"action_type"`
	Details    map[string]any     `json:"details"`
}

// AuditQuery filters the audit log listing.
type AuditQuery struct {
	TicketID   *string
	ActionType *domain.AuditAction
	Limit      int
}

// NotificationInsert is the payload for a notification row.
type NotificationInsert struct {
	UserID   string                  `json:"user_id"`
	Title    string                  `json:"title"`
	Body     string                  `json:"body"`
	Type     domain.NotificationType `json:"type"`
	TicketID *string                 `json:"ticket_id"`
}

// NotificationQuery filters a user's inbox.
type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
}

// OutboxEntry is a pending side effect.
type OutboxEntry struct {
	ID        string
	Kind      string
	Payload   []byte
	Attempts  int
	LastError *string
	CreatedAt time.Time
}

// TicketStore reads and writes tickets. Reads carry the creator, agent, team
// and category projections.
type TicketStore interface {
	Select(ctx context.Context, q TicketQuery) ([]domain.Ticket, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Insert(ctx context.Context, in TicketInsert) (*domain.Ticket, error)
	Update(ctx context.Context, id string, patch domain.TicketPatch) (*domain.Ticket, error)
}

// MessageStore reads and appends thread messages, oldest first.
type MessageStore interface {
	Select(ctx context.Context, q MessageQuery) ([]domain.Message, error)
	Insert(ctx context.Context, in MessageInsert) (*domain.Message, error)
}

// AuditLogStore appends and lists audit entries.
type AuditLogStore interface {
	Insert(ctx context.Context, in AuditInsert) error
	List(ctx context.Context, q AuditQuery) ([]domain.AuditLogEntry, error)
}

// NotificationStore manages per-user notifications.
type NotificationStore interface {
	Insert(ctx context.Context, in NotificationInsert) error
	ListForUser(ctx context.Context, userID string, q NotificationQuery) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
}

// NamedUpdate replaces the name and description of a team or category. A
// nil description clears it.
type NamedUpdate struct {
	Name        string
	Description *string
}

// DirectoryStore serves profiles, teams and categories.
type DirectoryStore interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error)
	InsertProfile(ctx context.Context, p domain.Profile) (*domain.Profile, error)
	SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Profile, error)

	ListTeams(ctx context.Context) ([]domain.Team, error)
	InsertTeam(ctx context.Context, t domain.Team) (*domain.Team, error)
	UpdateTeam(ctx context.Context, id string, in NamedUpdate) (*domain.Team, error)
	// DeleteTeam removes the team and its memberships and unassigns it from
	// tickets.
	DeleteTeam(ctx context.Context, id string) error
	ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
	AddTeamMember(ctx context.Context, teamID, agentID string) (*domain.TeamMember, error)
	RemoveTeamMember(ctx context.Context, teamID, memberID string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	InsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, in NamedUpdate) (*domain.Category, error)
	// DeleteCategory removes the category and clears it from tickets.
	DeleteCategory(ctx context.Context, id string) error
}

// AccountStore holds password credentials.
type AccountStore interface {
	Insert(ctx context.Context, a domain.Account) error
	ByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// OutboxStore queues side effects for asynchronous delivery.
type OutboxStore interface {
	Enqueue(ctx context.Context, kind string, payload []byte) error
	// Claim leases up to limit due entries for the given duration.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]OutboxEntry, error)
	Complete(ctx context.Context, id string) error
	// Fail records an attempt. A zero retryAt marks the entry dead.
	Fail(ctx context.Context, id, reason string, retryAt time.Time) error
}

// Gateway is the typed client over the helpdesk store.
type Gateway interface {
	Tickets() TicketStore
	Messages() MessageStore
	AuditLogs() AuditLogStore
	Notifications() NotificationStore
	Directory() DirectoryStore
	Accounts() AccountStore
	Outbox() OutboxStore

	// InTx runs fn against a transactional view. Change signals for writes in
	// fn are emitted only after commit. Nested calls join the outer unit.
	InTx(ctx context.Context, fn func(tx Gateway) error) error
	Ping(ctx context.Context) error
	Close()
}

// IsNotFound reports whether err is a single-row miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
