package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler("helpdesk", "test",
		Dependency{Name: "gateway", Pinger: pingFunc(func(context.Context) error { return nil })},
		Dependency{Name: "redis", Pinger: pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })},
	)
	app := fiber.New()
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "ok", body.Error.Details["gateway"])
	assert.Equal(t, "dial tcp: refused", body.Error.Details["redis"])
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"open", "resolved"}, splitList(" open,,resolved ,"))
}
