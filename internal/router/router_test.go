package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventpass/backend/internal/auth"
	"github.com/eventpass/backend/internal/dashboard"
	"github.com/eventpass/backend/internal/engine"
	"github.com/eventpass/backend/internal/handlers"
	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/money"
	"github.com/eventpass/backend/internal/schema"
)

const adminPassword = "organizer-pass"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	j := ledger.NewMemoryJournal()
	e, err := engine.New(engine.DefaultConfig("organizer"), engine.WithJournal(j))
	require.NoError(t, err)
	authSvc := auth.NewService(auth.NewMemoryStore(), "test-secret", time.Hour, "organizer")
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, authSvc.BootstrapAdmin(context.Background(), string(hash)))
	h := New(auth.NewHandler(authSvc, nil), handlers.NewTicketHandler(e, money.DefaultDecimals, nil),
		dashboard.NewHandler(j, e, money.DefaultDecimals, nil), authSvc, schema.MustNewValidator())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, _ = io.Copy(buf, resp.Body)
	return resp.StatusCode, buf.String()
}

func login(t *testing.T, srv *httptest.Server, identity string) string {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/v1/auth/register", "", `{"identity":"`+identity+`","password":"password123"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return loginAs(t, srv, identity, "password123")
}

func loginAs(t *testing.T, srv *httptest.Server, identity, password string) string {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/v1/auth/login", "", `{"identity":"`+identity+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, status, body)
	tok := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(body), `{"token":"`), `"}`)
	require.NotEmpty(t, tok)
	return tok
}

func TestRouter_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	status, _ := call(t, srv, http.MethodGet, "/api/v1/prices", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/tickets", "", `{"tier":"vip","payment":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, status, "mutations need a token")

	alice := login(t, srv, "alice")

	status, body := call(t, srv, http.MethodPost, "/api/v1/tickets", alice, `{"tier":"vip","payment":0.25}`)
	assert.Equal(t, http.StatusBadRequest, status, "schema rejects numeric amounts: %s", body)

	status, body = call(t, srv, http.MethodPost, "/api/v1/tickets", alice, `{"tier":"vip","payment":"0.3"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Contains(t, body, `"refund":"0.05"`)

	status, body = call(t, srv, http.MethodGet, "/api/v1/identities/alice/tickets", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"owner":"alice"`)

	status, body = call(t, srv, http.MethodGet, "/api/v1/identities/alice/transfers", alice, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"net":"-0.25"`)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/treasury/withdraw", alice, "")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, srv, http.MethodPut, "/api/v1/prices/standard", alice, `{"price":"0"}`)
	assert.Equal(t, http.StatusForbidden, status)

	admin := loginAs(t, srv, "organizer", adminPassword)
	status, body = call(t, srv, http.MethodPut, "/api/v1/prices/standard", admin, `{"price":"0.12"}`)
	require.Equal(t, http.StatusOK, status, body)
	status, body = call(t, srv, http.MethodGet, "/api/v1/treasury", admin, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"balance":"0.25"`)
	status, body = call(t, srv, http.MethodPost, "/api/v1/treasury/withdraw", admin, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"amount":"0.25"`)
}

func TestRouter_AdminIdentityCannotBeRegistered(t *testing.T) {
	srv := newTestServer(t)

	alice := login(t, srv, "alice")
	status, body := call(t, srv, http.MethodPost, "/api/v1/tickets", alice, `{"tier":"vip","payment":"0.25"}`)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = call(t, srv, http.MethodPost, "/api/v1/auth/register", "", `{"identity":"organizer","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, status, body)
	assert.Contains(t, body, "invalid_identity")

	status, _ = call(t, srv, http.MethodPost, "/api/v1/auth/login", "", `{"identity":"organizer","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := loginAs(t, srv, "organizer", adminPassword)
	status, body = call(t, srv, http.MethodPost, "/api/v1/treasury/withdraw", admin, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"amount":"0.25"`)
}
