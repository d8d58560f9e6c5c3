package domain

import "time"

// Role is the application role of a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent || r == RoleAdmin
}

// IsStaff reports whether the role belongs to agents or admins.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Profile models a person known to the helpdesk.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Org       *string   `json:"org"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// ActorFromProfile derives the acting identity from a profile row.
func ActorFromProfile(p *Profile) Actor {
	return Actor{ID: p.UserID, DisplayName: p.Name, Email: p.Email, Role: p.Role}
}

// Account holds sign-in credentials for a user id.
type Account struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CanView reports whether the actor may read t. Staff see every ticket;
// requesters see their own.
func (a Actor) CanView(t *Ticket) bool {
	return a.Role.IsStaff() || t.CreatedByActor(a.ID)
}

// CanSeeInternal reports whether the actor may read or write internal notes.
func (a Actor) CanSeeInternal() bool {
	return a.Role.IsStaff()
}
