// Package directory serves the lookups assignment screens need (assignable
// agents, teams, categories and single profiles) and the admin maintenance
// of teams, categories and user roles.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// Directory answers lookups as the acting user.
type Directory struct {
	session identity.Session
	gw      gateway.Gateway
}

// New builds a directory acting as session.
func New(session identity.Session, gw gateway.Gateway) *Directory {
	if session == nil {
		session = identity.Anonymous()
	}
	return &Directory{session: session, gw: gw}
}

// Agents returns the profiles a ticket can be assigned to, ordered by name.
func (d *Directory) Agents(ctx context.Context) ([]domain.Profile, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	out, err := d.gw.Directory().ListProfiles(ctx, domain.RoleAgent, domain.RoleAdmin)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list agents", err)
	}
	return out, nil
}

// Teams returns every team ordered by name.
func (d *Directory) Teams(ctx context.Context) ([]domain.Team, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	out, err := d.gw.Directory().ListTeams(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list teams", err)
	}
	return out, nil
}

// Categories returns every category ordered by name.
func (d *Directory) Categories(ctx context.Context) ([]domain.Category, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	out, err := d.gw.Directory().ListCategories(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list categories", err)
	}
	return out, nil
}

// Profile returns the profile of userID.
func (d *Directory) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	p, err := d.gw.Directory().Profile(ctx, userID)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewPersistenceError("get profile", err)
	}
	return p, nil
}

// Me returns the acting user's profile.
func (d *Directory) Me(ctx context.Context) (*domain.Profile, error) {
	actor, err := d.actor()
	if err != nil {
		return nil, err
	}
	return d.Profile(ctx, actor.ID)
}

// CreateTeam adds a team. Admins only.
func (d *Directory) CreateTeam(ctx context.Context, name string, description *string) (*domain.Team, error) {
	name, err := d.adminName(name)
	if err != nil {
		return nil, err
	}
	t, err := d.gw.Directory().InsertTeam(ctx, domain.Team{Name: name, Description: description})
	if err != nil {
		return nil, insertError("team", name, err)
	}
	return t, nil
}

// CreateCategory adds a category. Admins only.
func (d *Directory) CreateCategory(ctx context.Context, name string, description *string) (*domain.Category, error) {
	name, err := d.adminName(name)
	if err != nil {
		return nil, err
	}
	c, err := d.gw.Directory().InsertCategory(ctx, domain.Category{Name: name, Description: description})
	if err != nil {
		return nil, insertError("category", name, err)
	}
	return c, nil
}

// TeamMembers returns the agents on a team, earliest member first.
func (d *Directory) TeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	out, err := d.gw.Directory().ListTeamMembers(ctx, teamID)
	if err != nil {
		if gateway.IsNotFound(err) {
			return []domain.TeamMember{}, nil
		}
		return nil, apperrors.NewPersistenceError("list team members", err)
	}
	return out, nil
}

// UpdateTeam renames a team and replaces its description. Admins only.
func (d *Directory) UpdateTeam(ctx context.Context, id, name string, description *string) (*domain.Team, error) {
	name, err := d.adminName(name)
	if err != nil {
		return nil, err
	}
	t, err := d.gw.Directory().UpdateTeam(ctx, id, gateway.NamedUpdate{Name: name, Description: description})
	if err != nil {
		return nil, writeError("team", id, name, err)
	}
	return t, nil
}

// DeleteTeam removes a team. Tickets routed to it become unassigned from
// any team. Admins only.
func (d *Directory) DeleteTeam(ctx context.Context, id string) error {
	if err := d.requireAdmin(); err != nil {
		return err
	}
	if err := d.gw.Directory().DeleteTeam(ctx, id); err != nil {
		return writeError("team", id, "", err)
	}
	return nil
}

// AddTeamMember puts an agent or admin on a team. Admins only.
func (d *Directory) AddTeamMember(ctx context.Context, teamID, agentID string) (*domain.TeamMember, error) {
	if err := d.requireAdmin(); err != nil {
		return nil, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent_id is required", map[string]any{"agent_id": "required"})
	}
	p, err := d.gw.Directory().Profile(ctx, agentID)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"user_id": agentID})
		}
		return nil, apperrors.NewPersistenceError("get profile", err)
	}
	if !p.Role.IsStaff() {
		return nil, apperrors.NewValidationError("only agents and admins can join a team", map[string]any{"agent_id": "not staff"})
	}
	m, err := d.gw.Directory().AddTeamMember(ctx, teamID, agentID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrConflict):
			return nil, apperrors.NewConflict("agent is already on the team", map[string]any{"team_id": teamID, "agent_id": agentID})
		case gateway.IsNotFound(err):
			return nil, apperrors.NewNotFound("team", map[string]any{"id": teamID})
		}
		return nil, apperrors.NewPersistenceError("add team member", err)
	}
	return m, nil
}

// RemoveTeamMember takes a membership off a team. Admins only.
func (d *Directory) RemoveTeamMember(ctx context.Context, teamID, memberID string) error {
	if err := d.requireAdmin(); err != nil {
		return err
	}
	if err := d.gw.Directory().RemoveTeamMember(ctx, teamID, memberID); err != nil {
		if gateway.IsNotFound(err) {
			return apperrors.NewNotFound("team member", map[string]any{"team_id": teamID, "id": memberID})
		}
		return apperrors.NewPersistenceError("remove team member", err)
	}
	return nil
}

// UpdateCategory renames a category and replaces its description. Admins
// only.
func (d *Directory) UpdateCategory(ctx context.Context, id, name string, description *string) (*domain.Category, error) {
	name, err := d.adminName(name)
	if err != nil {
		return nil, err
	}
	c, err := d.gw.Directory().UpdateCategory(ctx, id, gateway.NamedUpdate{Name: name, Description: description})
	if err != nil {
		return nil, writeError("category", id, name, err)
	}
	return c, nil
}

// DeleteCategory removes a category and clears it from tickets. Admins only.
func (d *Directory) DeleteCategory(ctx context.Context, id string) error {
	if err := d.requireAdmin(); err != nil {
		return err
	}
	if err := d.gw.Directory().DeleteCategory(ctx, id); err != nil {
		return writeError("category", id, "", err)
	}
	return nil
}

// Users returns every profile ordered by name. Admins only.
func (d *Directory) Users(ctx context.Context) ([]domain.Profile, error) {
	if err := d.requireAdmin(); err != nil {
		return nil, err
	}
	out, err := d.gw.Directory().ListProfiles(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list users", err)
	}
	return out, nil
}

// SetRole changes a user's role. It applies from the user's next request.
// Admins only.
func (d *Directory) SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Profile, error) {
	if err := d.requireAdmin(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	p, err := d.gw.Directory().SetRole(ctx, userID, role)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewPersistenceError("set role", err)
	}
	return p, nil
}

func (d *Directory) actor() (domain.Actor, error) {
	actor, ok := d.session.Actor()
	if !ok {
		return domain.Actor{}, apperrors.NewAuthRequired()
	}
	return actor, nil
}

func (d *Directory) requireAdmin() error {
	actor, err := d.actor()
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func (d *Directory) adminName(name string) (string, error) {
	if err := d.requireAdmin(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("name is required", map[string]any{"name": "required"})
	}
	return name, nil
}

func insertError(resource, name string, err error) error {
	if errors.Is(err, gateway.ErrConflict) {
		return apperrors.NewConflict(resource+" already exists", map[string]any{"name": name})
	}
	return apperrors.NewPersistenceError("create "+resource, err)
}

func writeError(resource, id, name string, err error) error {
	switch {
	case errors.Is(err, gateway.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", map[string]any{"name": name})
	case gateway.IsNotFound(err):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.NewPersistenceError("update "+resource, err)
}
