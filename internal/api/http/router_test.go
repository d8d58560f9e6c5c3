package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/supportsphere/helpdesk/internal/api/http/handlers"
	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway/memory"
	"github.com/supportsphere/helpdesk/internal/identity"
)

type testServer struct {
	app  *fiber.App
	gw   *memory.Gateway
	auth *identity.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := changefeed.NewHub(nil)
	t.Cleanup(hub.Close)
	gw := memory.New(memory.WithPublisher(hub))
	logger := zap.NewNop()

	tokens := identity.NewTokenManager("test-secret", time.Hour)
	authService := identity.NewService(gw, tokens, bcrypt.MinCost)
	repos := handlers.Repositories{
		Gateway:  gw,
		Feed:     hub,
		Recorder: fanout.NewDirect(gw, logger, nil),
		Logger:   logger,
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, nil, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:        handlers.NewHealthHandler("helpdesk", "test", handlers.Dependency{Name: "gateway", Pinger: gw}),
		Users:         handlers.NewUsersHandler(authService),
		Tickets:       handlers.NewTicketsHandler(repos),
		Conversations: handlers.NewConversationHandler(repos),
		Notifications: handlers.NewNotificationsHandler(repos),
		Directory:     handlers.NewDirectoryHandler(repos),
		Changes:       handlers.NewChangesHandler(repos),
		Identity:      identity.NewMiddleware(tokens, gw.Directory()),
	})
	return &testServer{app: app, gw: gw, auth: authService}
}

func (s *testServer) token(t *testing.T, name string, role domain.Role) string {
	t.Helper()
	res, err := s.auth.Register(context.Background(), identity.RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "correct-horse",
		Role:     role,
	})
	require.NoError(t, err)
	return res.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Grace",
		"email":    "grace@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "user", data["user"].(map[string]any)["role"])

	status, body = s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]any{
		"email":    "grace@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_REQUIRED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]any{
		"email":    "grace@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/tickets", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_REQUIRED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodGet, "/tickets", "garbage", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	requester := s.token(t, "grace", domain.RoleUser)
	agent := s.token(t, "ada", domain.RoleAgent)

	status, body := s.do(t, nethttp.MethodPost, "/tickets", requester, map[string]any{
		"title":       "VPN down",
		"description": "Cannot connect since this morning",
		"priority":    "high",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	created := body["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "open", created["status"])

	status, body = s.do(t, nethttp.MethodGet, "/tickets?priority=high,urgent", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, _ = s.do(t, nethttp.MethodPost, "/tickets/"+id+"/messages", agent, map[string]any{
		"message": "Looking into it",
	})
	require.Equal(t, nethttp.StatusCreated, status)

	status, body = s.do(t, nethttp.MethodGet, "/notifications/unread-count", requester, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.EqualValues(t, 0, body["data"].(map[string]any)["unread"], "unassigned tickets notify nobody")

	status, body = s.do(t, nethttp.MethodPost, "/tickets/"+id+"/status", agent, map[string]any{"status": "resolved"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "resolved", body["data"].(map[string]any)["status"])

	status, body = s.do(t, nethttp.MethodGet, "/notifications/unread-count", requester, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["unread"])

	status, _ = s.do(t, nethttp.MethodPost, "/tickets/"+id+"/status", agent, map[string]any{"status": "duplicate"})
	require.Equal(t, nethttp.StatusOK, status)
	status, body = s.do(t, nethttp.MethodPost, "/tickets/"+id+"/status", agent, map[string]any{"status": "open"})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	requester := s.token(t, "grace", domain.RoleUser)
	admin := s.token(t, "root", domain.RoleAdmin)

	status, body := s.do(t, nethttp.MethodPost, "/admin/teams", requester, map[string]any{"name": "Network"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, nethttp.MethodPost, "/admin/teams", admin, map[string]any{"name": "Network"})
	assert.Equal(t, nethttp.StatusCreated, status)

	status, _ = s.do(t, nethttp.MethodPost, "/tickets/some-id/assign", requester, map[string]any{"assigned_agent": nil})
	assert.Equal(t, nethttp.StatusForbidden, status)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAllowedTransitionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	requester := s.token(t, "grace", domain.RoleUser)

	status, body := s.do(t, nethttp.MethodGet, "/tickets/statuses/duplicate/transitions", requester, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Empty(t, body["data"])

	status, _ = s.do(t, nethttp.MethodGet, "/tickets/statuses/bogus/transitions", requester, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestAdminDirectoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "root", domain.RoleAdmin)
	agent := s.token(t, "ada", domain.RoleAgent)
	grace, err := s.auth.Register(context.Background(), identity.RegisterInput{
		Name: "grace", Email: "grace@example.com", Password: "correct-horse", Role: domain.RoleUser,
	})
	require.NoError(t, err)

	status, body := s.do(t, nethttp.MethodPost, "/admin/teams", admin, map[string]any{"name": "Network"})
	require.Equal(t, nethttp.StatusCreated, status)
	teamID := body["data"].(map[string]any)["id"].(string)

	status, body = s.do(t, nethttp.MethodPut, "/admin/teams/"+teamID, admin, map[string]any{"name": "Networking"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "Networking", body["data"].(map[string]any)["name"])

	status, body = s.do(t, nethttp.MethodPost, "/admin/teams/"+teamID+"/members", admin, map[string]any{"agent_id": grace.Profile.UserID})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodPut, "/admin/users/"+grace.Profile.UserID+"/role", agent, map[string]any{"role": "agent"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	status, body = s.do(t, nethttp.MethodPut, "/admin/users/"+grace.Profile.UserID+"/role", admin, map[string]any{"role": "agent"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "agent", body["data"].(map[string]any)["role"])

	status, body = s.do(t, nethttp.MethodPost, "/admin/teams/"+teamID+"/members", admin, map[string]any{"agent_id": grace.Profile.UserID})
	require.Equal(t, nethttp.StatusCreated, status)
	memberID := body["data"].(map[string]any)["id"].(string)

	status, body = s.do(t, nethttp.MethodGet, "/directory/teams/"+teamID+"/members", agent, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.do(t, nethttp.MethodDelete, "/admin/teams/"+teamID+"/members/"+memberID, admin, nil)
	assert.Equal(t, nethttp.StatusNoContent, status)
	status, _ = s.do(t, nethttp.MethodDelete, "/admin/teams/"+teamID, admin, nil)
	assert.Equal(t, nethttp.StatusNoContent, status)
	status, body = s.do(t, nethttp.MethodDelete, "/admin/teams/"+teamID, admin, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/admin/categories", admin, map[string]any{"name": "Printers"})
	require.Equal(t, nethttp.StatusCreated, status)
	categoryID := body["data"].(map[string]any)["id"].(string)
	status, _ = s.do(t, nethttp.MethodPut, "/admin/categories/"+categoryID, admin, map[string]any{"name": "Printing"})
	assert.Equal(t, nethttp.StatusOK, status)
	status, _ = s.do(t, nethttp.MethodDelete, "/admin/categories/"+categoryID, admin, nil)
	assert.Equal(t, nethttp.StatusNoContent, status)

	status, body = s.do(t, nethttp.MethodGet, "/admin/users", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["data"], 3)
}

func TestChangeStreamHidesOtherRequestersTickets(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "grace", domain.RoleUser)
	other := s.token(t, "mallory", domain.RoleUser)

	status, body := s.do(t, nethttp.MethodPost, "/tickets", owner, map[string]any{
		"title":       "VPN down",
		"description": "Cannot connect",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	id := body["data"].(map[string]any)["id"].(string)

	for _, table := range []string{"ticket_messages", "tickets"} {
		status, body = s.do(t, nethttp.MethodGet, "/changes?table="+table+"&ticket_id="+id, other, nil)
		assert.Equal(t, nethttp.StatusNotFound, status, table)
		assert.Equal(t, "NOT_FOUND", errorCode(body), table)
	}

	status, body = s.do(t, nethttp.MethodGet, "/changes?table=ticket_messages", other, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodGet, "/changes?table=ticket_messages&ticket_id=missing", other, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
}
