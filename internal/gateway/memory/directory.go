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

type directoryStore struct{ g *Gateway }

func (s directoryStore) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	var out domain.Profile
	err := s.g.run(ctx, gateway.OpDirectoryProfile, func(d *dataset) ([]changefeed.Signal, error) {
		p, ok := d.profiles[userID]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		out = p
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) ProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var out domain.Profile
	err := s.g.run(ctx, gateway.OpDirectoryProfile, func(d *dataset) ([]changefeed.Signal, error) {
		for _, p := range d.profiles {
			if strings.EqualFold(p.Email, email) {
				out = p
				return nil, nil
			}
		}
		return nil, gateway.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProfiles returns profiles with any of roles (all when none given),
// ordered by name.
func (s directoryStore) ListProfiles(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error) {
	out := []domain.Profile{}
	err := s.g.run(ctx, gateway.OpDirectoryProfiles, func(d *dataset) ([]changefeed.Signal, error) {
		for _, p := range d.profiles {
			if len(roles) == 0 || containsValue(roles, p.Role) {
				out = append(out, p)
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s directoryStore) InsertProfile(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	err := s.g.run(ctx, gateway.OpDirectoryInsert, func(d *dataset) ([]changefeed.Signal, error) {
		if _, exists := d.profiles[p.UserID]; exists {
			return nil, gateway.ErrConflict
		}
		for _, existing := range d.profiles {
			if strings.EqualFold(existing.Email, p.Email) {
				return nil, gateway.ErrConflict
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.UserID == "" {
			p.UserID = uuid.NewString()
		}
		if p.Role == "" {
			p.Role = domain.RoleUser
		}
		now := s.g.stamp()
		p.CreatedAt, p.UpdatedAt = now, now
		d.profiles[p.UserID] = p
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s directoryStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	out := []domain.Team{}
	err := s.g.run(ctx, gateway.OpDirectoryTeams, func(d *dataset) ([]changefeed.Signal, error) {
		for _, t := range d.teams {
			out = append(out, t)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s directoryStore) InsertTeam(ctx context.Context, t domain.Team) (*domain.Team, error) {
	err := s.g.run(ctx, gateway.OpDirectoryInsertTeam, func(d *dataset) ([]changefeed.Signal, error) {
		for _, existing := range d.teams {
			if existing.Name == t.Name {
				return nil, gateway.ErrConflict
			}
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		now := s.g.stamp()
		t.CreatedAt, t.UpdatedAt = now, now
		d.teams[t.ID] = t
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s directoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := s.g.run(ctx, gateway.OpDirectoryCategories, func(d *dataset) ([]changefeed.Signal, error) {
		for _, c := range d.categories {
			out = append(out, c)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s directoryStore) InsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	err := s.g.run(ctx, gateway.OpDirectoryInsertCat, func(d *dataset) ([]changefeed.Signal, error) {
		for _, existing := range d.categories {
			if existing.Name == c.Name {
				return nil, gateway.ErrConflict
			}
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt = s.g.stamp()
		d.categories[c.ID] = c
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s directoryStore) SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Profile, error) {
	var out domain.Profile
	err := s.g.run(ctx, gateway.OpDirectorySetRole, func(d *dataset) ([]changefeed.Signal, error) {
		p, ok := d.profiles[userID]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		p.Role = role
		p.UpdatedAt = s.g.stamp()
		d.profiles[userID] = p
		out = p
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) UpdateTeam(ctx context.Context, id string, in gateway.NamedUpdate) (*domain.Team, error) {
	var out domain.Team
	err := s.g.run(ctx, gateway.OpDirectoryUpdateTeam, func(d *dataset) ([]changefeed.Signal, error) {
		t, ok := d.teams[id]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		for _, existing := range d.teams {
			if existing.ID != id && existing.Name == in.Name {
				return nil, gateway.ErrConflict
			}
		}
		t.Name, t.Description = in.Name, in.Description
		t.UpdatedAt = s.g.stamp()
		d.teams[id] = t
		out = t
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) DeleteTeam(ctx context.Context, id string) error {
	return s.g.run(ctx, gateway.OpDirectoryDeleteTeam, func(d *dataset) ([]changefeed.Signal, error) {
		if _, ok := d.teams[id]; !ok {
			return nil, gateway.ErrNotFound
		}
		delete(d.teams, id)
		members := d.teamMembers[:0:0]
		for _, m := range d.teamMembers {
			if m.TeamID != id {
				members = append(members, m)
			}
		}
		d.teamMembers = members
		return s.unlinkTickets(d, func(t *domain.Ticket) bool {
			if t.AssignedTeam == nil || *t.AssignedTeam != id {
				return false
			}
			t.AssignedTeam = nil
			return true
		}), nil
	})
}

// ListTeamMembers returns the members of teamID, earliest first.
func (s directoryStore) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	out := []domain.TeamMember{}
	err := s.g.run(ctx, gateway.OpDirectoryMembers, func(d *dataset) ([]changefeed.Signal, error) {
		for _, m := range d.teamMembers {
			if m.TeamID == teamID {
				out = append(out, d.projectMember(m))
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s directoryStore) AddTeamMember(ctx context.Context, teamID, agentID string) (*domain.TeamMember, error) {
	var out domain.TeamMember
	err := s.g.run(ctx, gateway.OpDirectoryAddMember, func(d *dataset) ([]changefeed.Signal, error) {
		if _, ok := d.teams[teamID]; !ok {
			return nil, gateway.ErrNotFound
		}
		if _, ok := d.profiles[agentID]; !ok {
			return nil, gateway.ErrNotFound
		}
		for _, m := range d.teamMembers {
			if m.TeamID == teamID && m.AgentID == agentID {
				return nil, gateway.ErrConflict
			}
		}
		m := domain.TeamMember{
			ID:        uuid.NewString(),
			TeamID:    teamID,
			AgentID:   agentID,
			CreatedAt: s.g.stamp(),
		}
		d.teamMembers = append(d.teamMembers, m)
		out = d.projectMember(m)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) RemoveTeamMember(ctx context.Context, teamID, memberID string) error {
	return s.g.run(ctx, gateway.OpDirectoryRemoveMember, func(d *dataset) ([]changefeed.Signal, error) {
		for i, m := range d.teamMembers {
			if m.ID == memberID && m.TeamID == teamID {
				d.teamMembers = append(d.teamMembers[:i:i], d.teamMembers[i+1:]...)
				return nil, nil
			}
		}
		return nil, gateway.ErrNotFound
	})
}

func (s directoryStore) UpdateCategory(ctx context.Context, id string, in gateway.NamedUpdate) (*domain.Category, error) {
	var out domain.Category
	err := s.g.run(ctx, gateway.OpDirectoryUpdateCat, func(d *dataset) ([]changefeed.Signal, error) {
		c, ok := d.categories[id]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		for _, existing := range d.categories {
			if existing.ID != id && existing.Name == in.Name {
				return nil, gateway.ErrConflict
			}
		}
		c.Name, c.Description = in.Name, in.Description
		d.categories[id] = c
		out = c
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) DeleteCategory(ctx context.Context, id string) error {
	return s.g.run(ctx, gateway.OpDirectoryDeleteCat, func(d *dataset) ([]changefeed.Signal, error) {
		if _, ok := d.categories[id]; !ok {
			return nil, gateway.ErrNotFound
		}
		delete(d.categories, id)
		return s.unlinkTickets(d, func(t *domain.Ticket) bool {
			if t.CategoryID == nil || *t.CategoryID != id {
				return false
			}
			t.CategoryID = nil
			return true
		}), nil
	})
}

// unlinkTickets applies unlink to every ticket and returns a change signal
// for each one it touched.
func (s directoryStore) unlinkTickets(d *dataset, unlink func(t *domain.Ticket) bool) []changefeed.Signal {
	var signals []changefeed.Signal
	for id, t := range d.tickets {
		if !unlink(&t) {
			continue
		}
		t.UpdatedAt = s.g.stamp()
		d.tickets[id] = t
		signals = append(signals, changefeed.Signal{Table: changefeed.TableTickets, TicketID: id})
	}
	return signals
}

func (d *dataset) projectMember(m domain.TeamMember) domain.TeamMember {
	m.Agent = nil
	if p, ok := d.profiles[m.AgentID]; ok {
		m.Agent = &domain.PersonRef{Name: p.Name, Email: p.Email}
	}
	return m
}
