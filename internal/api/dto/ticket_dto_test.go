package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/domain"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

func TestParseTicketPatch(t *testing.T) {
	patch, err := ParseTicketPatch([]byte(`{"title":"Printer on fire","assigned_team":null,"priority":"urgent"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.Set("Printer on fire"), patch.Title)
	assert.Equal(t, domain.Clear[string](), patch.AssignedTeam)
	assert.Equal(t, domain.Set(domain.TicketPriorityUrgent), patch.Priority)
	assert.False(t, patch.Description.Present)
	assert.False(t, patch.Status.Present)
}

func TestParseTicketPatchRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":      `title=x`,
		"unknown field": `{"owner":"me"}`,
		"wrong type":    `{"sla_breached":"yes"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTicketPatch([]byte(body))
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	patch, err := ParseTicketPatch([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestAssignTeamChange(t *testing.T) {
	var req AssignTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{"assigned_agent":"a-1"}`), &req))
	changed, team, err := req.TeamChange()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, team)

	req = AssignTicketRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"assigned_agent":"a-1","assigned_team":null}`), &req))
	changed, team, err = req.TeamChange()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, team)

	req = AssignTicketRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"assigned_team":"team-1"}`), &req))
	changed, team, err = req.TeamChange()
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, team)
	assert.Equal(t, "team-1", *team)
	assert.Nil(t, req.AssignedAgent)
}
