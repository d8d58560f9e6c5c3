package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

const profileSelect = `
        SELECT id::text, user_id::text, name, email, role, org, avatar_url, created_at, updated_at
        FROM profiles`

type directoryStore struct{ g *Gateway }

func (s directoryStore) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.oneProfile(ctx, profileSelect+" WHERE user_id = $1", userID)
}

func (s directoryStore) ProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return s.oneProfile(ctx, profileSelect+" WHERE lower(email) = lower($1)", email)
}

func (s directoryStore) oneProfile(ctx context.Context, query string, arg any) (*domain.Profile, error) {
	var profile *domain.Profile
	err := s.g.run(ctx, gateway.OpDirectoryProfile, func(db querier) ([]changefeed.Signal, error) {
		var err error
		profile, err = scanProfile(db.QueryRow(ctx, query, arg))
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s directoryStore) ListProfiles(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error) {
	query := profileSelect
	args := []any{}
	if len(roles) > 0 {
		placeholders := make([]string, len(roles))
		for i, role := range roles {
			args = append(args, string(role))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" WHERE role IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY name"

	profiles := []domain.Profile{}
	err := s.g.run(ctx, gateway.OpDirectoryProfiles, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			profile, err := scanProfile(rows)
			if err != nil {
				return nil, err
			}
			profiles = append(profiles, *profile)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s directoryStore) InsertProfile(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	const query = `
        INSERT INTO profiles (user_id, name, email, role, org, avatar_url)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
        RETURNING id::text, user_id::text, name, email, role, org, avatar_url, created_at, updated_at`
	role := p.Role
	if role == "" {
		role = domain.RoleUser
	}
	var profile *domain.Profile
	err := s.g.run(ctx, gateway.OpDirectoryInsert, func(db querier) ([]changefeed.Signal, error) {
		var err error
		profile, err = scanProfile(db.QueryRow(ctx, query, p.UserID, p.Name, p.Email, string(role), p.Org, p.AvatarURL))
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &role, &p.Org, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	return &p, nil
}

func (s directoryStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	const query = `SELECT id::text, name, description, created_at, updated_at FROM teams ORDER BY name`
	teams := []domain.Team{}
	err := s.g.run(ctx, gateway.OpDirectoryTeams, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var t domain.Team
			if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
				return nil, err
			}
			teams = append(teams, t)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (s directoryStore) InsertTeam(ctx context.Context, t domain.Team) (*domain.Team, error) {
	const query = `
        INSERT INTO teams (name, description) VALUES ($1, $2)
        RETURNING id::text, name, description, created_at, updated_at`
	var out domain.Team
	err := s.g.run(ctx, gateway.OpDirectoryInsertTeam, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, t.Name, t.Description).
			Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	const query = `SELECT id::text, name, description, created_at FROM categories ORDER BY name`
	categories := []domain.Category{}
	err := s.g.run(ctx, gateway.OpDirectoryCategories, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var c domain.Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
				return nil, err
			}
			categories = append(categories, c)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (s directoryStore) InsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const query = `
        INSERT INTO categories (name, description) VALUES ($1, $2)
        RETURNING id::text, name, description, created_at`
	var out domain.Category
	err := s.g.run(ctx, gateway.OpDirectoryInsertCat, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, c.Name, c.Description).
			Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Profile, error) {
	const query = `
        UPDATE profiles SET role = $2, updated_at = now() WHERE user_id = $1
        RETURNING id::text, user_id::text, name, email, role, org, avatar_url, created_at, updated_at`
	var profile *domain.Profile
	err := s.g.run(ctx, gateway.OpDirectorySetRole, func(db querier) ([]changefeed.Signal, error) {
		var err error
		profile, err = scanProfile(db.QueryRow(ctx, query, userID, string(role)))
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s directoryStore) UpdateTeam(ctx context.Context, id string, in gateway.NamedUpdate) (*domain.Team, error) {
	const query = `
        UPDATE teams SET name = $2, description = $3, updated_at = now() WHERE id = $1
        RETURNING id::text, name, description, created_at, updated_at`
	var out domain.Team
	err := s.g.run(ctx, gateway.OpDirectoryUpdateTeam, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, id, in.Name, in.Description).
			Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt, &out.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) DeleteTeam(ctx context.Context, id string) error {
	return s.g.run(ctx, gateway.OpDirectoryDeleteTeam, func(db querier) ([]changefeed.Signal, error) {
		signals, err := ticketSignals(ctx, db, `SELECT id::text FROM tickets WHERE assigned_team = $1`, id)
		if err != nil {
			return nil, err
		}
		return signals, deleteOne(ctx, db, `DELETE FROM teams WHERE id = $1`, id)
	})
}

func (s directoryStore) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `
        SELECT m.id::text, m.team_id::text, m.agent_id::text, m.created_at, p.name, p.email
        FROM team_members m
        LEFT JOIN profiles p ON p.user_id = m.agent_id
        WHERE m.team_id = $1
        ORDER BY m.created_at`
	members := []domain.TeamMember{}
	err := s.g.run(ctx, gateway.OpDirectoryMembers, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, teamID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMember(rows)
			if err != nil {
				return nil, err
			}
			members = append(members, *m)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s directoryStore) AddTeamMember(ctx context.Context, teamID, agentID string) (*domain.TeamMember, error) {
	const query = `
        WITH inserted AS (
            INSERT INTO team_members (team_id, agent_id) VALUES ($1, $2)
            RETURNING id, team_id, agent_id, created_at
        )
        SELECT i.id::text, i.team_id::text, i.agent_id::text, i.created_at, p.name, p.email
        FROM inserted i
        LEFT JOIN profiles p ON p.user_id = i.agent_id`
	var member *domain.TeamMember
	err := s.g.run(ctx, gateway.OpDirectoryAddMember, func(db querier) ([]changefeed.Signal, error) {
		var err error
		member, err = scanMember(db.QueryRow(ctx, query, teamID, agentID))
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s directoryStore) RemoveTeamMember(ctx context.Context, teamID, memberID string) error {
	return s.g.run(ctx, gateway.OpDirectoryRemoveMember, func(db querier) ([]changefeed.Signal, error) {
		return nil, deleteOne(ctx, db, `DELETE FROM team_members WHERE id = $1 AND team_id = $2`, memberID, teamID)
	})
}

func (s directoryStore) UpdateCategory(ctx context.Context, id string, in gateway.NamedUpdate) (*domain.Category, error) {
	const query = `
        UPDATE categories SET name = $2, description = $3 WHERE id = $1
        RETURNING id::text, name, description, created_at`
	var out domain.Category
	err := s.g.run(ctx, gateway.OpDirectoryUpdateCat, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, id, in.Name, in.Description).
			Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s directoryStore) DeleteCategory(ctx context.Context, id string) error {
	return s.g.run(ctx, gateway.OpDirectoryDeleteCat, func(db querier) ([]changefeed.Signal, error) {
		signals, err := ticketSignals(ctx, db, `SELECT id::text FROM tickets WHERE category_id = $1`, id)
		if err != nil {
			return nil, err
		}
		return signals, deleteOne(ctx, db, `DELETE FROM categories WHERE id = $1`, id)
	})
}

func scanMember(row pgx.Row) (*domain.TeamMember, error) {
	var (
		m           domain.TeamMember
		name, email *string
	)
	if err := row.Scan(&m.ID, &m.TeamID, &m.AgentID, &m.CreatedAt, &name, &email); err != nil {
		return nil, err
	}
	if name != nil && email != nil {
		m.Agent = &domain.PersonRef{Name: *name, Email: *email}
	}
	return &m, nil
}

// ticketSignals collects a change signal for every ticket the query returns.
// The foreign keys unlink those tickets when the referenced row goes away.
func ticketSignals(ctx context.Context, db querier, query string, args ...any) ([]changefeed.Signal, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var signals []changefeed.Signal
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		signals = append(signals, changefeed.Signal{Table: changefeed.TableTickets, TicketID: id})
	}
	return signals, rows.Err()
}

func deleteOne(ctx context.Context, db querier, query string, args ...any) error {
	cmd, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
