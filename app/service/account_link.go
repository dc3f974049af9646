package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/provider"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/sirupsen/logrus"
)

const (
	DefaultLinkTTL      = 15 * time.Minute
	defaultProviderTag  = "LINKEDIN"
	expiresOnLayout     = "2006-01-02T15:04:05.000Z"
	SuccessCallbackPath = "/connect/success"
	FailureCallbackPath = "/connect/failure"
	NotifyCallbackPath  = "/unipile/notify"
)

type WebhookOutcome string

const (
	WebhookCreated    WebhookOutcome = "created"
	WebhookUpdated    WebhookOutcome = "updated"
	WebhookStale      WebhookOutcome = "stale"
	WebhookUnattached WebhookOutcome = "unattached"
	WebhookIgnored    WebhookOutcome = "ignored"
	WebhookFailed     WebhookOutcome = "failed"
)

type linkAPI interface {
	CreateLink(ctx context.Context, link *provider.LinkRequest) (string, error)
}

// AccountLinkService drives the hosted-auth handshake. A link request persists nothing;
// rows only appear when the provider reports back through HandleWebhook.
type AccountLinkService struct {
	store   store.Gateway
	api     linkAPI
	cfg     config.ProviderConfig
	baseURL string
	opts    options
}

func NewAccountLinkService(gateway store.Gateway, api linkAPI, cfg *config.Config, opts ...Option) *AccountLinkService {
	providerCfg := cfg.Provider
	if providerCfg.LinkTTL <= 0 {
		providerCfg.LinkTTL = DefaultLinkTTL
	}
	if providerCfg.Name == "" {
		providerCfg.Name = defaultProviderTag
	}
	if len(providerCfg.Providers) == 0 {
		providerCfg.Providers = []string{defaultProviderTag}
	}
	return &AccountLinkService{
		store:   gateway,
		api:     api,
		cfg:     providerCfg,
		baseURL: cfg.App.BaseURL,
		opts:    newOptions(opts),
	}
}

// RequestLink asks the provider for a hosted wizard URL tagged with userID. It can be
// called any number of times; unused links simply expire.
func (s *AccountLinkService) RequestLink(ctx context.Context, userID uint64) (string, error) {
	if s.api == nil || !s.cfg.Configured() || s.baseURL == "" {
		return "", ErrUpstreamConfig
	}

	link := &provider.LinkRequest{
		Type:               "create",
		Providers:          s.cfg.Providers,
		APIURL:             s.cfg.APIHost,
		ExpiresOn:          s.opts.utcNow().Add(s.cfg.LinkTTL).Format(expiresOnLayout),
		SuccessRedirectURL: s.baseURL + SuccessCallbackPath,
		FailureRedirectURL: s.baseURL + FailureCallbackPath,
		NotifyURL:          s.baseURL + NotifyCallbackPath,
		Name:               strconv.FormatUint(userID, 10),
	}

	url, err := s.api.CreateLink(ctx, link)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Hosted link request failed")
		return "", fmt.Errorf("%w: %s", ErrUpstreamRequest, err.Error())
	}
	if url == "" {
		return "", fmt.Errorf("%w: empty link", ErrUpstreamRequest)
	}
	return url, nil
}

// HandleWebhook reconciles one provider notification with the stored accounts. It never
// fails: problems are logged and reported through the outcome.
func (s *AccountLinkService) HandleWebhook(ctx context.Context, event *WebhookEvent) WebhookOutcome {
	if event == nil || event.AccountID == "" {
		logrus.Warn("Webhook without account id ignored")
		return WebhookIgnored
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"account_id": event.AccountID,
		"status":     event.Status,
	})

	status := event.Status
	if status == "" {
		status = entity.AccountStatusPending
	}
	now := s.opts.utcNow()
	account := &entity.ConnectedAccount{
		AccountID:   event.AccountID,
		Provider:    s.cfg.Name,
		Status:      status,
		ConnectedAt: now,
		LastSync:    sql.NullTime{Time: now, Valid: true},
	}
	if len(event.Payload) > 0 {
		account.AccountData = sql.NullString{String: string(event.Payload), Valid: true}
	}
	if event.EventAt != nil {
		account.EventAt = sql.NullTime{Time: event.EventAt.UTC(), Valid: true}
	}

	owner, err := s.resolveOwner(ctx, event.CorrelationRef)
	if err != nil {
		log.WithError(err).Warn("Webhook owner lookup failed")
		return WebhookFailed
	}

	outcome, err := s.record(ctx, account, owner)
	if err != nil {
		log.WithError(err).Warn("Webhook could not be recorded")
		return WebhookFailed
	}

	log = log.WithField("outcome", outcome)
	if owner != nil {
		log = log.WithField("user_id", owner.ID)
	}
	switch outcome {
	case WebhookUnattached:
		log.WithField("correlation", event.CorrelationRef).Warn("Webhook for unknown account without a resolvable user dropped")
	case WebhookStale:
		log.Info("Webhook older than stored state, nothing applied")
	default:
		log.Info("Webhook recorded")
	}
	return outcome
}

func (s *AccountLinkService) record(ctx context.Context, account *entity.ConnectedAccount, owner *entity.User) (WebhookOutcome, error) {
	if owner != nil {
		account.UserID = owner.ID
		result, err := s.store.Accounts().Upsert(ctx, account)
		if err != nil {
			return WebhookFailed, err
		}
		switch result {
		case store.UpsertInserted:
			return WebhookCreated, nil
		case store.UpsertUpdated:
			return WebhookUpdated, nil
		default:
			return WebhookStale, nil
		}
	}

	updated, err := s.store.Accounts().UpdateExisting(ctx, account)
	if err != nil {
		return WebhookFailed, err
	}
	if updated {
		return WebhookUpdated, nil
	}

	existing, err := s.store.Accounts().FindByAccountID(ctx, account.AccountID)
	if err != nil {
		return WebhookFailed, err
	}
	if existing == nil {
		return WebhookUnattached, nil
	}
	return WebhookStale, nil
}

// resolveOwner maps the correlation tag sent with the link request back to a user. A
// tag that is not a known user id yields nil without error.
func (s *AccountLinkService) resolveOwner(ctx context.Context, ref string) (*entity.User, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(ref), 10, 64)
	if err != nil || id == 0 {
		return nil, nil
	}
	return s.store.Users().FindByID(ctx, id)
}

func (s *AccountLinkService) Disconnect(ctx context.Context, accountID string) (bool, error) {
	return s.store.Accounts().DeleteByAccountID(ctx, accountID)
}

// DisconnectOwned only removes the account when it belongs to userID.
func (s *AccountLinkService) DisconnectOwned(ctx context.Context, userID uint64, accountID string) (bool, error) {
	removed, err := s.store.Accounts().DeleteOwned(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	if removed {
		logrus.WithFields(logrus.Fields{"user_id": userID, "account_id": accountID}).Info("Account disconnected")
	}
	return removed, nil
}

func (s *AccountLinkService) ListAccounts(ctx context.Context, userID uint64) ([]*entity.ConnectedAccount, error) {
	return s.store.Accounts().ListByUserID(ctx, userID)
}

func (s *AccountLinkService) Stats(ctx context.Context, userID uint64) (*entity.AccountStats, error) {
	return s.store.Accounts().Stats(ctx, userID)
}
