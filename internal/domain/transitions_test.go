package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from TicketStatus
		to   TicketStatus
		want bool
	}{
		{"open to assigned", TicketStatusOpen, TicketStatusAssigned, true},
		{"assigned back to open", TicketStatusAssigned, TicketStatusOpen, true},
		{"resolved to assigned", TicketStatusResolved, TicketStatusAssigned, true},
		{"same status", TicketStatusInProgress, TicketStatusInProgress, true},
		{"closed to reopened", TicketStatusClosed, TicketStatusReopened, true},
		{"closed to open", TicketStatusClosed, TicketStatusOpen, false},
		{"cancelled to reopened", TicketStatusCancelled, TicketStatusReopened, true},
		{"cancelled to assigned", TicketStatusCancelled, TicketStatusAssigned, false},
		{"open to reopened", TicketStatusOpen, TicketStatusReopened, false},
		{"duplicate to open", TicketStatusDuplicate, TicketStatusOpen, false},
		{"duplicate to reopened", TicketStatusDuplicate, TicketStatusReopened, false},
		{"duplicate stays duplicate", TicketStatusDuplicate, TicketStatusDuplicate, true},
		{"unknown target", TicketStatusOpen, TicketStatus("archived"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestAllowedTransitions(t *testing.T) {
	assert.Empty(t, AllowedTransitions(TicketStatusDuplicate))
	assert.Equal(t, []TicketStatus{TicketStatusReopened}, AllowedTransitions(TicketStatusClosed))
	assert.NotContains(t, AllowedTransitions(TicketStatusOpen), TicketStatusOpen)
	assert.Contains(t, AllowedTransitions(TicketStatusResolved), TicketStatusReopened)
}

func TestTicketDisplayKey(t *testing.T) {
	ticket := &Ticket{TicketNumber: 42}
	assert.Equal(t, "SS-42", ticket.DisplayKey())
}
