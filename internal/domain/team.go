package domain

import "time"

// Team represents a group of agents tickets can be routed to.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamMember links an agent to a team.
type TeamMember struct {
	ID        string     `json:"id"`
	TeamID    string     `json:"team_id"`
	AgentID   string     `json:"agent_id"`
	CreatedAt time.Time  `json:"created_at"`
	Agent     *PersonRef `json:"agent,omitempty"`
}
