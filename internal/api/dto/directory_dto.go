package dto

// CreateNamedRequest payload for creating or updating teams and categories.
type CreateNamedRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// AddTeamMemberRequest payload.
type AddTeamMemberRequest struct {
	AgentID string `json:"agent_id"`
}

// SetRoleRequest payload.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// UnreadCountResponse payload.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse payload.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}
