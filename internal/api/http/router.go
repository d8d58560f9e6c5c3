package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/api/http/handlers"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/identity"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Users         *handlers.UsersHandler
	Tickets       *handlers.TicketsHandler
	Conversations *handlers.ConversationHandler
	Notifications *handlers.NotificationsHandler
	Directory     *handlers.DirectoryHandler
	Changes       *handlers.ChangesHandler
	Identity      *identity.Middleware

	// Metrics is mounted at MetricsPath when both are set.
	MetricsPath string
	Metrics     fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	api := app.Group("", cfg.Identity.Handle, identity.RequireAuth())
	api.Get("/me", cfg.Directory.Me)
	api.Get("/changes", cfg.Changes.Stream)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/statuses/:status/transitions", cfg.Tickets.AllowedTransitions)
	tickets.Get("/:id", cfg.Conversations.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/assign", identity.RequireRole(domain.RoleAgent, domain.RoleAdmin), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Get("/:id/messages", cfg.Conversations.ListMessages)
	tickets.Post("/:id/messages", cfg.Conversations.SendMessage)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)

	dir := api.Group("/directory")
	dir.Get("/agents", cfg.Directory.Agents)
	dir.Get("/teams", cfg.Directory.Teams)
	dir.Get("/teams/:id/members", cfg.Directory.TeamMembers)
	dir.Get("/categories", cfg.Directory.Categories)
	dir.Get("/profiles/:id", cfg.Directory.Profile)

	admin := api.Group("/admin", identity.RequireRole(domain.RoleAdmin))
	admin.Post("/teams", cfg.Directory.CreateTeam)
	admin.Put("/teams/:id", cfg.Directory.UpdateTeam)
	admin.Delete("/teams/:id", cfg.Directory.DeleteTeam)
	admin.Post("/teams/:id/members", cfg.Directory.AddTeamMember)
	admin.Delete("/teams/:id/members/:memberId", cfg.Directory.RemoveTeamMember)
	admin.Post("/categories", cfg.Directory.CreateCategory)
	admin.Put("/categories/:id", cfg.Directory.UpdateCategory)
	admin.Delete("/categories/:id", cfg.Directory.DeleteCategory)
	admin.Get("/users", cfg.Directory.Users)
	admin.Put("/users/:id/role", cfg.Directory.SetRole)
	admin.Get("/audit-logs", cfg.Directory.AuditLogs)
}
