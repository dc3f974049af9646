package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/provider"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"
	"github.com/vibast-solutions/ms-go-linkhub/app/store/storetest"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentEmail struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	sent []sentEmail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, htmlBody, textBody string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	return !m.fail
}

func (m *fakeMailer) messages() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

type fakeLinkAPI struct {
	url  string
	err  error
	last *provider.LinkRequest
	mu   sync.Mutex
}

func (f *fakeLinkAPI) CreateLink(_ context.Context, link *provider.LinkRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = link
	return f.url, f.err
}

type fixture struct {
	gw       *storetest.Gateway
	cfg      *config.Config
	now      time.Time
	hasher   *service.Hasher
	mailer   *fakeMailer
	api      *fakeLinkAPI
	sessions *service.SessionService
	resets   *service.ResetService
	users    *service.UserService
	links    *service.AccountLinkService
	tokens   *service.TokenService
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{BaseURL: "https://linkhub.test"},
		JWT: config.JWTConfig{Secret: "test-secret", TTL: 24 * time.Hour},
		Session: config.SessionConfig{
			TTL: 24 * time.Hour,
		},
		Tokens: config.TokenConfig{ResetTTL: 30 * time.Minute},
		Password: config.PasswordConfig{
			Policy:              config.PasswordPolicy{MinLength: 8},
			BcryptCost:          bcrypt.MinCost,
			MaxConcurrentHashes: 4,
		},
		Provider: config.ProviderConfig{
			Name:      "LINKEDIN",
			APIBase:   "https://api1.unipile.test:13111/api/v1",
			APIHost:   "https://api1.unipile.test:13111",
			APIKey:    "super-secret-key",
			Providers: []string{"LINKEDIN"},
			LinkTTL:   15 * time.Minute,
		},
		Email: config.EmailConfig{Timeout: time.Second},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		gw:     storetest.New(),
		cfg:    testConfig(),
		now:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		mailer: &fakeMailer{},
		api:    &fakeLinkAPI{url: "https://account.unipile.test/wizard/abc"},
	}
	f.hasher = service.NewHasherFromConfig(f.cfg.Password)

	opts := []service.Option{
		service.WithClock(func() time.Time { return f.now }),
		service.WithAsyncRunner(func(task func()) { task() }),
	}
	f.sessions = service.NewSessionService(f.gw, f.hasher, f.cfg.Session.TTL, opts...)
	f.resets = service.NewResetService(f.gw, f.hasher, f.mailer, f.cfg, opts...)
	f.users = service.NewUserService(f.gw, f.hasher, f.cfg.Password.Policy, opts...)
	f.links = service.NewAccountLinkService(f.gw, f.api, f.cfg, opts...)
	f.tokens = service.NewTokenService(f.cfg.JWT.Secret, f.cfg.JWT.TTL, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// putUser stores a user with a fixed id and password.
func (f *fixture) putUser(t *testing.T, id uint64, username, email, password string) entity.User {
	t.Helper()

	hash, err := f.hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	user := entity.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	f.gw.PutUser(user)
	return user
}
