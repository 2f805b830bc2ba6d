package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tlschat/internal/api"
	"github.com/mcoot/tlschat/internal/api/apierr"
	"github.com/mcoot/tlschat/internal/api/response"
	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/dependencies/mocks"
	"github.com/mcoot/tlschat/internal/protocol"
	"github.com/mcoot/tlschat/internal/services/auth"
	"github.com/mcoot/tlschat/internal/storage/memory"
	"github.com/mcoot/tlschat/internal/testutil"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// testServer creates a test server with all dependencies
type testServer struct {
	handler  http.Handler
	registry *chat.LockedRegistry
	auth     *auth.Service
}

func newTestServer(t *testing.T, adminToken string) *testServer {
	t.Helper()

	registry := chat.NewLockedRegistry()
	authService := auth.New(memory.New(), mocks.NewMockClock(testNow), auth.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())

	router := api.NewRouter(api.RouterConfig{
		Logger:      testutil.NopLogger(),
		Registry:    registry,
		AuthService: authService,
		AdminToken:  adminToken,
	})

	return &testServer{
		handler:  router,
		registry: registry,
		auth:     authService,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// connect authenticates a connection over a pipe and registers it
func (ts *testServer) connect(t *testing.T, id, credentials string) *chat.Conn {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	go func() {
		_ = protocol.WriteMessage(client, credentials)
		_, _ = protocol.NewReader(client).ReadMessage(context.Background())
	}()

	conn := chat.NewConn(id, server, testNow, chat.DefaultConnConfig())
	_, err := chat.Authenticate(context.Background(), conn, ts.auth, testutil.NopLogger())
	require.NoError(t, err)
	ts.registry.Add(conn)
	return conn
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListSessionsEmpty(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodGet, "/api/v1/sessions", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0,"sessions":[]}`, rr.Body.String())
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t, "")
	ts.connect(t, "c1", "alice/pw/Alice")
	ts.connect(t, "c2", "bob/pw/Bob")

	rr := ts.request(http.MethodGet, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.SessionList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "c1", resp.Sessions[0].ID)
	assert.Equal(t, "alice", resp.Sessions[0].Login)
	assert.Equal(t, "Alice", resp.Sessions[0].DisplayName)
	assert.True(t, testNow.Equal(resp.Sessions[0].ConnectedAt))
	assert.Equal(t, "Bob", resp.Sessions[1].DisplayName)
}

func TestGetAccount(t *testing.T) {
	ts := newTestServer(t, "")
	_, err := ts.auth.Register(context.Background(), "alice", "secret", "Alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/accounts/alice", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	var resp response.Account
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Login)
	assert.Equal(t, "Alice", resp.DisplayName)
}

func TestGetUnknownAccount(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodGet, "/api/v1/accounts/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeAccountNotFound, decodeError(t, rr).Code)
}

func TestChangeDisplayName(t *testing.T) {
	ts := newTestServer(t, "")
	_, err := ts.auth.Register(context.Background(), "alice", "secret", "Alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodPatch, "/api/v1/accounts/alice", map[string]string{"display_name": "Queen"}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	account, err := ts.auth.Account(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Queen", account.DisplayName)

	rr = ts.request(http.MethodPatch, "/api/v1/accounts/alice", map[string]string{"display_name": ""}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t, "")
	_, err := ts.auth.Register(context.Background(), "alice", "secret", "Alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodPost, "/api/v1/accounts/alice/password",
		map[string]string{"current_password": "wrong", "new_password": "n3w"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidPassword, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/accounts/alice/password",
		map[string]string{"current_password": "secret", "new_password": "n3w"}, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	_, err = ts.auth.Login(context.Background(), "alice", "n3w")
	assert.NoError(t, err)
}

func TestInvalidRequestBody(t *testing.T) {
	ts := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/accounts/alice", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
}

func TestAdminTokenGuardsAccounts(t *testing.T) {
	ts := newTestServer(t, "s3cret")
	_, err := ts.auth.Register(context.Background(), "alice", "secret", "Alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/accounts/alice", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/accounts/alice", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/accounts/alice", nil, "s3cret")
	assert.Equal(t, http.StatusOK, rr.Code)

	// Read-only session listing stays open
	rr = ts.request(http.MethodGet, "/api/v1/sessions", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, decodeError(t, rr).Code)
}

func TestServerListenAndShutdown(t *testing.T) {
	ts := newTestServer(t, "")
	cfg := api.DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := api.NewServer(ts.handler, cfg, testutil.NopLogger())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-served)
}
