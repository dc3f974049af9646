package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"

	"github.com/sirupsen/logrus"
)

const (
	sessionTokenBytes = 32
	DefaultSessionTTL = 24 * time.Hour
)

type SessionService struct {
	store  store.Gateway
	hasher *Hasher
	ttl    time.Duration
	opts   options
}

func NewSessionService(gateway store.Gateway, hasher *Hasher, ttl time.Duration, opts ...Option) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		store:  gateway,
		hasher: hasher,
		ttl:    ttl,
		opts:   newOptions(opts),
	}
}

// Authenticate fails with ErrInvalidCredentials for an unknown username and for a wrong
// password alike, and spends a bcrypt comparison in both cases.
func (s *SessionService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	user, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.VerifyDummy(ctx, password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and opens a session. Inactive users get the same error as a bad
// password.
func (s *SessionService) Login(ctx context.Context, username, password string) (*entity.Session, *entity.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	logrus.WithField("user_id", user.ID).Info("User logged in")
	return session, user, nil
}

func (s *SessionService) CreateSession(ctx context.Context, userID uint64) (*entity.Session, error) {
	token, err := randomToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.opts.utcNow()
	session := &entity.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err = s.store.Sessions().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ResolveSession returns nil, nil, nil for a missing or expired token and for a session
// whose owner is inactive or gone. Those rows are left in place.
func (s *SessionService) ResolveSession(ctx context.Context, token string) (*entity.Session, *entity.User, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := s.store.Sessions().FindByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || !session.Valid(s.opts.utcNow()) {
		return nil, nil, nil
	}

	user, err := s.store.Users().FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil, nil
	}
	return session, user, nil
}

func (s *SessionService) RevokeSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.store.Sessions().DeleteByToken(ctx, token)
}

func (s *SessionService) RevokeUserSessions(ctx context.Context, userID uint64) (int64, error) {
	return s.store.Sessions().DeleteByUserID(ctx, userID)
}

func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.Sessions().DeleteExpired(ctx, s.opts.utcNow())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logrus.WithField("count", removed).Info("Swept expired sessions")
	}
	return removed, nil
}

// SweepResetTokens drops reset tokens past their expiry. Redeem re-checks expiry, so
// this only reclaims space.
func (s *SessionService) SweepResetTokens(ctx context.Context) (int64, error) {
	return s.store.ResetTokens().DeleteExpired(ctx, s.opts.utcNow())
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
