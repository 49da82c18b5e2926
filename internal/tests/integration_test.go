//go:build integration

package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal"
	"ralph-api/internal/config"
	"ralph-api/internal/logging"
	"ralph-api/internal/models"
	"ralph-api/internal/store/postgres"
	"ralph-api/internal/testutil"
)

type client struct {
	t     *testing.T
	srv   *internal.Server
	token string
}

// newClient serves a fresh schema and authenticates as an admin
func newClient(t *testing.T) *client {
	t.Helper()
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	testutil.ResetSchema(t, db)

	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.DriverPostgres},
		JWT: config.JWTConfig{
			Secret:   "supersecretkeyforintegrationtestingonly",
			Issuer:   "ralph-api",
			Audience: "ralph-api",
			Expiry:   24 * time.Hour,
		},
		ConfigPath: config.PathConfig{Separator: "."},
	}
	srv, err := internal.NewServer(cfg, postgres.New(db), logging.Discard())
	require.NoError(t, err)

	admin, err := srv.Inventory.CreateUser(context.Background(), models.CreateUserRequest{
		Username: "admin",
		Password: "password123",
		Roles:    []string{models.RoleAdmin},
	})
	require.NoError(t, err)
	token, err := srv.JWTManager.GenerateToken(admin.ID, admin.Username, admin.Roles)
	require.NoError(t, err)
	return &client{t: t, srv: srv, token: token}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	w := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (c *client) must(status int, method, path string, body any) map[string]any {
	c.t.Helper()
	code, out := c.do(method, path, body)
	require.Equal(c.t, status, code, "%s %s: %v", method, path, out)
	return out
}

func id(body map[string]any) int {
	return int(body["id"].(float64))
}

func TestHealthAndPing(t *testing.T) {
	c := newClient(t)

	for _, path := range []string{"/health", "/dbping"} {
		w := httptest.NewRecorder()
		c.srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServiceEnvironmentLifecycle(t *testing.T) {
	c := newClient(t)
	c.must(http.StatusCreated, http.MethodPost, "/environment", map[string]string{"name": "prod"})
	c.must(http.StatusCreated, http.MethodPost, "/environment", map[string]string{"name": "dev"})

	svc := c.must(http.StatusCreated, http.MethodPost, "/service", map[string]any{
		"name": "billing", "environments": []string{"prod", "dev"},
	})
	envs := c.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/serviceenvironment?service=%d", id(svc)), nil)
	require.EqualValues(t, 2, envs["count"])

	var prodEnv int
	for _, raw := range envs["results"].([]any) {
		se := raw.(map[string]any)
		if se["environment"].(map[string]any)["name"] == "prod" {
			prodEnv = id(se)
		}
	}
	require.NotZero(t, prodEnv)

	sePath := fmt.Sprintf("/serviceenvironment/%d", prodEnv)
	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/serviceenvironment"},
		{http.MethodPut, sePath},
		{http.MethodPatch, sePath},
		{http.MethodDelete, sePath},
	} {
		code, body := c.do(req.method, req.path, map[string]any{"service": id(svc)})
		assert.Equal(t, http.StatusMethodNotAllowed, code, "%s %s", req.method, req.path)
		assert.Equal(t, "METHOD_NOT_ALLOWED", body["code"])
	}
	c.must(http.StatusOK, http.MethodGet, sePath, nil)

	model := c.must(http.StatusCreated, http.MethodPost, "/assetmodel", map[string]any{"name": "R640", "type": 2})
	asset := c.must(http.StatusCreated, http.MethodPost, "/datacenterasset", map[string]any{
		"model": id(model), "hostname": "s1", "service_env": prodEnv,
	})
	assert.Equal(t, "billing", asset["service_env"].(map[string]any)["service"])

	code, body := c.do(http.MethodPatch, fmt.Sprintf("/service/%d", id(svc)), map[string]any{"environments": []string{"dev"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "PROTECTED", body["code"])

	envs = c.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/serviceenvironment?service=%d", id(svc)), nil)
	assert.EqualValues(t, 2, envs["count"])

	filtered := c.must(http.StatusOK, http.MethodGet, "/datacenterasset?service=billing&env=prod", nil)
	assert.EqualValues(t, 1, filtered["count"])
}

func TestObjectFiltersAndUniqueness(t *testing.T) {
	c := newClient(t)
	model := c.must(http.StatusCreated, http.MethodPost, "/assetmodel", map[string]any{"name": "R640", "type": 2})
	for i, host := range []string{"web-1", "web-2", "db-1"} {
		c.must(http.StatusCreated, http.MethodPost, "/datacenterasset", map[string]any{
			"model": id(model), "hostname": host, "sn": fmt.Sprintf("SN-%d", i), "price": (i + 1) * 100,
		})
	}

	tests := []struct {
		query string
		count int
	}{
		{"/datacenterasset?hostname__startswith=web", 2},
		{"/datacenterasset?price__gt=100", 2},
		{"/datacenterasset?q=db", 1},
		{"/baseobject?object_type=datacenterasset", 3},
	}
	for _, tt := range tests {
		body := c.must(http.StatusOK, http.MethodGet, tt.query, nil)
		assert.EqualValues(t, tt.count, body["count"], tt.query)
	}

	code, body := c.do(http.MethodPost, "/datacenterasset", map[string]any{"model": id(model), "sn": "SN-0"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]any{"sn": []any{"Object with this sn already exists."}}, body["fields"])
}

func TestConfigurationPathRename(t *testing.T) {
	c := newClient(t)
	root := c.must(http.StatusCreated, http.MethodPost, "/configurationmodule", map[string]any{"name": "ralph"})
	cls := c.must(http.StatusCreated, http.MethodPost, "/configurationclass", map[string]any{"class_name": "web", "module": id(root)})
	assert.Equal(t, "ralph.web", cls["path"])

	c.must(http.StatusOK, http.MethodPatch, fmt.Sprintf("/configurationmodule/%d", id(root)), map[string]any{"name": "core"})
	cls = c.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/configurationclass/%d", id(cls)), nil)
	assert.Equal(t, "core.web", cls["path"])
}

func TestDHCPProtection(t *testing.T) {
	c := newClient(t)
	model := c.must(http.StatusCreated, http.MethodPost, "/assetmodel", map[string]any{"name": "R640", "type": 2})
	host := c.must(http.StatusCreated, http.MethodPost, "/datacenterasset", map[string]any{"model": id(model), "hostname": "s1"})
	eth := c.must(http.StatusCreated, http.MethodPost, "/ethernet", map[string]any{"base_object": id(host), "mac": "00:16:3e:00:00:01"})
	ip := c.must(http.StatusCreated, http.MethodPost, "/ipaddress", map[string]any{
		"address": "10.0.0.1", "ethernet": id(eth), "dhcp_expose": true,
	})

	code, body := c.do(http.MethodDelete, fmt.Sprintf("/ipaddress/%d", id(ip)), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Could not delete IPAddress when it is exposed in DHCP", body["error"])

	code, _ = c.do(http.MethodDelete, fmt.Sprintf("/datacenterasset/%d", id(host)), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	c.must(http.StatusOK, http.MethodPatch, fmt.Sprintf("/ipaddress/%d", id(ip)), map[string]any{"dhcp_expose": false})
	c.must(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/datacenterasset/%d", id(host)), nil)
	ip = c.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/ipaddress/%d", id(ip)), nil)
	assert.Nil(t, ip["ethernet"])
}

func TestRoleEnforcement(t *testing.T) {
	c := newClient(t)
	viewer, err := c.srv.Inventory.CreateUser(context.Background(), models.CreateUserRequest{
		Username: "viewer", Password: "password123", Roles: []string{models.RoleViewer},
	})
	require.NoError(t, err)
	token, err := c.srv.JWTManager.GenerateToken(viewer.ID, viewer.Username, viewer.Roles)
	require.NoError(t, err)

	v := &client{t: t, srv: c.srv, token: token}
	code, body := v.do(http.MethodPost, "/environment", map[string]string{"name": "prod"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", body["code"])
	v.must(http.StatusOK, http.MethodGet, "/environment", nil)
}
