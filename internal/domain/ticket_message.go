package domain

import "time"

// SenderRef is the joined projection of a message sender.
type SenderRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Message captures one entry of a ticket thread. Internal messages are
// notes visible to staff only.
type Message struct {
	ID         string     `json:"id"`
	TicketID   string     `json:"ticket_id"`
	SenderID   *string    `json:"sender_id"`
	Message    string     `json:"message"`
	IsInternal bool       `json:"is_internal"`
	CreatedAt  time.Time  `json:"created_at"`
	Sender     *SenderRef `json:"sender,omitempty"`
}
