package dto

import "github.com/supportsphere/helpdesk/internal/domain"

// SendMessageRequest payload.
type SendMessageRequest struct {
	Message    string `json:"message"`
	IsInternal bool   `json:"is_internal"`
}

// ConversationResponse is a ticket with its thread.
type ConversationResponse struct {
	Ticket   *domain.Ticket   `json:"ticket"`
	Messages []domain.Message `json:"messages"`
}
