package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/controller"
	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/middleware"
	"github.com/vibast-solutions/ms-go-linkhub/app/provider"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"
	"github.com/vibast-solutions/ms-go-linkhub/app/store/storetest"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type capturingMailer struct {
	mu   sync.Mutex
	text []string
}

func (m *capturingMailer) Send(_ context.Context, _, _, _, textBody string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = append(m.text, textBody)
	return true
}

func (m *capturingMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.text) == 0 {
		return ""
	}
	return m.text[len(m.text)-1]
}

type stubLinkAPI struct {
	url string
	err error
}

func (s *stubLinkAPI) CreateLink(context.Context, *provider.LinkRequest) (string, error) {
	return s.url, s.err
}

type server struct {
	e      *echo.Echo
	gw     *storetest.Gateway
	mailer *capturingMailer
	api    *stubLinkAPI
	users  *service.UserService
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := &config.Config{
		App:     config.AppConfig{BaseURL: "https://linkhub.test"},
		JWT:     config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
		Session: config.SessionConfig{TTL: time.Hour, CookieName: "session_id"},
		Tokens:  config.TokenConfig{ResetTTL: 30 * time.Minute},
		Password: config.PasswordConfig{
			Policy:              config.PasswordPolicy{MinLength: 8},
			BcryptCost:          bcrypt.MinCost,
			MaxConcurrentHashes: 4,
		},
		Provider: config.ProviderConfig{
			Name:      "LINKEDIN",
			APIBase:   "https://api.unipile.test/api/v1",
			APIHost:   "https://api.unipile.test",
			APIKey:    "super-secret-key",
			Providers: []string{"LINKEDIN"},
		},
		Email: config.EmailConfig{Timeout: time.Second},
	}

	s := &server{
		gw:     storetest.New(),
		mailer: &capturingMailer{},
		api:    &stubLinkAPI{url: "https://account.unipile.test/wizard/xyz"},
	}
	inline := service.WithAsyncRunner(func(task func()) { task() })

	hasher := service.NewHasherFromConfig(cfg.Password)
	sessions := service.NewSessionService(s.gw, hasher, cfg.Session.TTL)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	s.users = service.NewUserService(s.gw, hasher, cfg.Password.Policy)
	resets := service.NewResetService(s.gw, hasher, s.mailer, cfg, inline)
	links := service.NewAccountLinkService(s.gw, s.api, cfg)

	s.e = echo.New()
	controller.RegisterRoutes(s.e, controller.Controllers{
		Auth:     controller.NewAuthController(s.users, sessions, resets, tokens, cfg.JWT.TTL, controller.CookieConfig{Name: "session_id"}),
		Profile:  controller.NewProfileController(s.users),
		Accounts: controller.NewAccountController(links),
		Admin:    controller.NewAdminController(s.users),
	}, middleware.NewAuthMiddleware(sessions, tokens, "session_id"))
	return s
}

type call struct {
	method string
	path   string
	body   any
	cookie string
	bearer string
}

func (s *server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := c.body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(c.method, c.path, bytes.NewReader(payload))
	if payload != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: c.cookie})
	}
	if c.bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.bearer)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) createUser(t *testing.T, username, password string, admin bool) *entity.User {
	t.Helper()

	user, err := s.users.CreateByAdmin(context.Background(), service.NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		IsAdmin:  admin,
	})
	require.NoError(t, err)
	return user
}

func (s *server) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"username": username, "password": password,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "session_id" {
			return cookie.Value
		}
	}
	t.Fatalf("login did not set the session cookie")
	return ""
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: map[string]any{
		"username": "alice", "email": "Alice@Example.com", "password": "longenough1", "full_name": "Alice",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[map[string]any](t, rec)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, false, user["is_admin"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/register", body: map[string]any{
		"username": "alice", "email": "other@example.com", "password": "longenough1",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	token := s.login(t, "alice", "longenough1")
	assert.NotEmpty(t, token)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/me", cookie: token})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, "Alice", me["full_name"])
}

func TestRegisterValidation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "malformed body", body: "{", want: "invalid request body"},
		{name: "missing username", body: map[string]string{"email": "a@example.com", "password": "longenough1"}, want: "username is required"},
		{name: "short username", body: map[string]string{"username": "al", "email": "a@example.com", "password": "longenough1"}, want: "username must be at least 3"},
		{name: "bad email", body: map[string]string{"username": "alice", "email": "nope", "password": "longenough1"}, want: "email is not valid"},
		{name: "weak password", body: map[string]string{"username": "alice", "email": "a@example.com", "password": "short"}, want: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: tt.body})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.want)
		})
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)

	wrong := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{"username": "alice", "password": "nope-nope"}})
	unknown := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{"username": "mallory", "password": "nope-nope"}})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Empty(t, wrong.Result().Cookies())
}

func TestLogout(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)
	token := s.login(t, "alice", "longenough1")

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/logout", cookie: token})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/me", cookie: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/logout", cookie: token})
	assert.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")
}

func TestSessionRoutesRequireSession(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{"/api/me", "/accounts", "/accounts/stats", "/connect/linkedin", "/connect/success"} {
		rec := s.do(t, call{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAccessToken(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/token", body: map[string]any{
		"username": "alice", "password": "longenough1", "ttl_seconds": 60,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "Bearer", resp["token_type"])
	assert.Equal(t, float64(60), resp["expires_in"])

	token, _ := resp["access_token"].(string)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/me", bearer: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]any](t, rec)["username"])

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/me", bearer: token + "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/token", body: map[string]any{
		"username": "alice", "password": "longenough1", "ttl_seconds": -1,
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)
	session := s.login(t, "alice", "longenough1")

	rec := s.do(t, call{method: http.MethodPost, path: "/auth/forgot-password", body: map[string]string{"email": "nobody@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	generic := rec.Body.String()
	assert.Empty(t, s.mailer.last())

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/forgot-password", body: map[string]string{"email": "ALICE@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, generic, rec.Body.String(), "the answer does not reveal whether the email exists")

	text := s.mailer.last()
	idx := strings.Index(text, "https://linkhub.test/auth/reset-password?token=")
	require.GreaterOrEqual(t, idx, 0)
	link, err := url.Parse(strings.Fields(text[idx:])[0])
	require.NoError(t, err)
	token := link.Query().Get("token")

	rec = s.do(t, call{method: http.MethodGet, path: "/auth/reset-password?token=" + url.QueryEscape(token)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["valid"])

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/reset-password", body: map[string]string{"token": token, "new_password": "short"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/reset-password", body: map[string]string{"token": token, "new_password": "longenough2"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/reset-password", body: map[string]string{"token": token, "new_password": "longenough3"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid or expired token", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, call{method: http.MethodGet, path: "/api/me", cookie: session})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset closes existing sessions")

	s.login(t, "alice", "longenough2")
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)
	s.createUser(t, "bob", "longenough2", false)
	current := s.login(t, "alice", "longenough1")
	other := s.login(t, "alice", "longenough1")

	rec := s.do(t, call{method: http.MethodPut, path: "/api/me", cookie: current, body: map[string]string{"full_name": "Alice L."}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice L.", decode[map[string]any](t, rec)["full_name"])

	rec = s.do(t, call{method: http.MethodPut, path: "/api/me", cookie: current, body: map[string]string{"email": "bob@example.com"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/me/password", cookie: current, body: map[string]string{
		"current_password": "wrong-password", "new_password": "longenough9",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/me/password", cookie: current, body: map[string]string{
		"current_password": "longenough1", "new_password": "longenough9",
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodGet, path: "/api/me", cookie: current}).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, call{method: http.MethodGet, path: "/api/me", cookie: other}).Code)
}

func TestConnectRedirects(t *testing.T) {
	s := newServer(t)
	s.createUser(t, "alice", "longenough1", false)
	token := s.login(t, "alice", "longenough1")

	rec := s.do(t, call{method: http.MethodGet, path: "/connect/linkedin", cookie: token})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://account.unipile.test/wizard/xyz", rec.Header().Get(echo.HeaderLocation))

	s.api.err = provider.ErrResponse
	rec = s.do(t, call{method: http.MethodGet, path: "/connect/linkedin", cookie: token})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "super-secret-key")
}

func TestWebhookAndAccounts(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice", "longenough1", false)
	s.createUser(t, "bob", "longenough2", false)
	aliceToken := s.login(t, "alice", "longenough1")
	bobToken := s.login(t, "bob", "longenough2")

	notify := func(body string) {
		rec := s.do(t, call{method: http.MethodPost, path: "/unipile/notify", body: body})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	}

	ref := `"` + jsonUint(alice.ID) + `"`
	notify(`{"status":"CREATION_SUCCESS","account_id":"acc-9","name":` + ref + `}`)
	notify(`{"status":"CREATION_SUCCESS","account_id":"acc-9","name":` + ref + `}`)
	notify(`{"status":"PENDING","account_id":"acc-10","name":` + ref + `}`)
	notify(`{"status":"CREATION_SUCCESS","account_id":"acc-11","name":"ghost"}`)
	notify(`not json`)
	notify(`{"status":"CREATION_SUCCESS"}`)

	rec := s.do(t, call{method: http.MethodGet, path: "/accounts", cookie: aliceToken})
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
			Status    string `json:"status"`
		} `json:"accounts"`
	}](t, rec)
	assert.Len(t, list.Accounts, 2)

	rec = s.do(t, call{method: http.MethodGet, path: "/accounts/stats", cookie: aliceToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":2,"active":1,"pending":1}`, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/connect/success", cookie: aliceToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["connected"])

	rec = s.do(t, call{method: http.MethodDelete, path: "/accounts/acc-9", cookie: bobToken})
	assert.Equal(t, http.StatusNotFound, rec.Code, "bob cannot remove alice's account")

	rec = s.do(t, call{method: http.MethodDelete, path: "/accounts/acc-9", cookie: aliceToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/accounts/acc-9", cookie: aliceToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, ok := s.gw.Account("acc-11")
	assert.False(t, ok, "webhooks without a resolvable user are dropped")
}

func TestWebhookOversizedBodyDropped(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice", "longenough1", false)
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	body := `{"status":"OK","account_id":"acc-big","name":"` + jsonUint(alice.ID) + `","pad":"` +
		strings.Repeat("x", 1<<20) + `"}`
	rec := s.do(t, call{method: http.MethodPost, path: "/unipile/notify", body: body})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	_, ok := s.gw.Account("acc-big")
	assert.False(t, ok)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "too large") {
			warned = true
		}
	}
	assert.True(t, warned, "an oversized body is reported as such")
}

func TestWebhookStoreFailureStillAcknowledged(t *testing.T) {
	s := newServer(t)
	s.gw.FailWith(context.DeadlineExceeded)

	rec := s.do(t, call{method: http.MethodPost, path: "/unipile/notify", body: `{"status":"CREATION_SUCCESS","account_id":"acc-9","name":"1"}`})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestAdminUserManagement(t *testing.T) {
	s := newServer(t)
	admin := s.createUser(t, "root", "longenough0", true)
	s.createUser(t, "alice", "longenough1", false)
	adminToken := s.login(t, "root", "longenough0")
	aliceToken := s.login(t, "alice", "longenough1")

	rec := s.do(t, call{method: http.MethodGet, path: "/admin/users", cookie: aliceToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/admin/users", cookie: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = s.do(t, call{method: http.MethodPost, path: "/admin/users", cookie: adminToken, body: map[string]any{
		"username": "carol", "email": "carol@example.com", "password": "longenough3", "is_admin": true,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	carol := decode[map[string]any](t, rec)
	assert.Equal(t, true, carol["is_admin"])
	carolID := jsonUint(uint64(carol["id"].(float64)))

	rec = s.do(t, call{method: http.MethodPut, path: "/admin/users/" + carolID, cookie: adminToken, body: map[string]any{"is_active": false}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["is_active"])

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{"username": "carol", "password": "longenough3"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "inactive users cannot log in")

	rec = s.do(t, call{method: http.MethodPut, path: "/admin/users/abc", cookie: adminToken, body: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPut, path: "/admin/users/999", cookie: adminToken, body: map[string]any{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/admin/users/" + jsonUint(admin.ID), cookie: adminToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admins cannot delete themselves")

	rec = s.do(t, call{method: http.MethodDelete, path: "/admin/users/" + carolID, cookie: adminToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/admin/users/" + carolID, cookie: adminToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
