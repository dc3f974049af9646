package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/sirupsen/logrus"
)

const (
	resetTokenBytes      = 48
	DefaultResetTokenTTL = 30 * time.Minute
	defaultEmailTimeout  = 15 * time.Second
)

type emailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) bool
}

type ResetService struct {
	store        store.Gateway
	hasher       *Hasher
	mailer       emailSender
	policy       config.PasswordPolicy
	baseURL      string
	ttl          time.Duration
	emailTimeout time.Duration
	opts         options
}

func NewResetService(gateway store.Gateway, hasher *Hasher, mailer emailSender, cfg *config.Config, opts ...Option) *ResetService {
	ttl := cfg.Tokens.ResetTTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	emailTimeout := cfg.Email.Timeout
	if emailTimeout <= 0 {
		emailTimeout = defaultEmailTimeout
	}
	return &ResetService{
		store:        gateway,
		hasher:       hasher,
		mailer:       mailer,
		policy:       cfg.Password.Policy,
		baseURL:      cfg.App.BaseURL,
		ttl:          ttl,
		emailTimeout: emailTimeout,
		opts:         newOptions(opts),
	}
}

// RequestReset returns nil whether or not the email belongs to a user, after the same
// single lookup on both paths. For a known user the previous unused tokens are replaced
// by a fresh one and the link is mailed on the async runner.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	canonical := CanonicalizeEmail(email)
	if canonical == "" {
		return nil
	}

	user, err := s.store.Users().FindByEmail(ctx, canonical)
	if err != nil {
		return err
	}
	if user == nil {
		logrus.Debug("Password reset requested for unknown email")
		return nil
	}

	taskCtx := context.WithoutCancel(ctx)
	s.opts.asyncRunner(func() {
		s.issueAndSend(taskCtx, user)
	})
	return nil
}

func (s *ResetService) issueAndSend(ctx context.Context, user *entity.User) {
	ctx, cancel := context.WithTimeout(ctx, s.emailTimeout)
	defer cancel()

	log := logrus.WithField("user_id", user.ID)
	token, err := s.issue(ctx, user.ID)
	if errors.Is(err, ErrUserNotFound) {
		log.Debug("User removed before the reset token was issued")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to issue password reset token")
		return
	}

	s.sendResetEmail(ctx, user, token)
}

func (s *ResetService) issue(ctx context.Context, userID uint64) (*entity.PasswordResetToken, error) {
	value, err := randomToken(resetTokenBytes)
	if err != nil {
		return nil, err
	}

	var token *entity.PasswordResetToken
	err = s.store.WithTx(ctx, func(tx store.Gateway) error {
		// The row lock orders concurrent requests for the same user.
		locked, err := tx.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrUserNotFound
		}

		if _, err = tx.ResetTokens().DeleteUnusedByUserID(ctx, userID); err != nil {
			return err
		}

		now := s.opts.utcNow()
		token = &entity.PasswordResetToken{
			UserID:    userID,
			Token:     value,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}
		return tx.ResetTokens().Create(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *ResetService) sendResetEmail(ctx context.Context, user *entity.User, token *entity.PasswordResetToken) {
	link := s.baseURL + "/auth/reset-password?token=" + url.QueryEscape(token.Token)
	minutes := int(s.ttl / time.Minute)
	text := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %d minutes.\n\n%s\n\nIf you did not ask for this, ignore this email.\n", user.Username, minutes, link)
	html := fmt.Sprintf(`<p>Hello %s,</p><p>Use the link below to choose a new password. It expires in %d minutes.</p><p><a href="%s">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>`, user.Username, minutes, link)

	if !s.mailer.Send(ctx, user.Email, "Reset your password", html, text) {
		logrus.WithField("user_id", user.ID).Warn("Password reset email was not delivered")
	}
}

// Redeem consumes token and sets the new password in one transaction. Missing, used and
// expired tokens all fail with ErrInvalidToken; a password rejected by the policy fails
// with ErrWeakPassword and leaves the token usable. All sessions of the user are closed.
func (s *ResetService) Redeem(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}

	// Hash before taking row locks; the policy verdict is only reported once the
	// token is known to be redeemable.
	var hash string
	policyErr := checkPassword(s.policy, newPassword)
	if policyErr == nil {
		var err error
		hash, err = s.hasher.Hash(ctx, newPassword)
		if errors.Is(err, ErrWeakInput) {
			policyErr = fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		} else if err != nil {
			return err
		}
	}

	return s.store.WithTx(ctx, func(tx store.Gateway) error {
		rt, err := tx.ResetTokens().FindByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if rt == nil || !rt.Redeemable(s.opts.utcNow()) {
			return ErrInvalidToken
		}
		if policyErr != nil {
			return policyErr
		}

		marked, err := tx.ResetTokens().MarkUsed(ctx, rt.ID)
		if err != nil {
			return err
		}
		if !marked {
			return ErrInvalidToken
		}

		if err = tx.Users().UpdatePassword(ctx, rt.UserID, hash, s.opts.utcNow()); err != nil {
			return err
		}
		if _, err = tx.Sessions().DeleteByUserID(ctx, rt.UserID); err != nil {
			return err
		}

		logrus.WithField("user_id", rt.UserID).Info("Password reset completed")
		return nil
	})
}

// ValidateToken reports whether token could be redeemed right now.
func (s *ResetService) ValidateToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	// Outside a transaction the lock is released as soon as the row is read.
	rt, err := s.store.ResetTokens().FindByTokenForUpdate(ctx, token)
	if err != nil {
		return false, err
	}
	return rt != nil && rt.Redeemable(s.opts.utcNow()), nil
}

// checkPassword applies the hard minimum and the configured policy.
func checkPassword(policy config.PasswordPolicy, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrWeakPassword, MinPasswordLength)
	}
	if err := policy.Validate(password); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	return nil
}
