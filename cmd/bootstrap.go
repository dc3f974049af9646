package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/mailer"
	"github.com/vibast-solutions/ms-go-linkhub/app/provider"
	"github.com/vibast-solutions/ms-go-linkhub/app/repository"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

type services struct {
	sessions *service.SessionService
	tokens   *service.TokenService
	users    *service.UserService
	resets   *service.ResetService
	links    *service.AccountLinkService
}

// loadConfig reads the configuration and applies the logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err = configureLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newServices(cfg *config.Config, db *sql.DB) *services {
	gateway := repository.NewStore(db)
	hasher := service.NewHasherFromConfig(cfg.Password)

	if !cfg.Provider.Configured() {
		logrus.Warn("Provider API is not configured; account linking requests will fail")
	}
	if cfg.Email.SMTPHost == "" {
		logrus.Warn("SMTP_HOST is not set; reset emails are only logged")
	}

	return &services{
		sessions: service.NewSessionService(gateway, hasher, cfg.Session.TTL),
		tokens:   service.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL),
		users:    service.NewUserService(gateway, hasher, cfg.Password.Policy),
		resets:   service.NewResetService(gateway, hasher, mailer.New(cfg.Email), cfg),
		links: service.NewAccountLinkService(gateway,
			provider.NewClient(cfg.Provider.APIBase, cfg.Provider.APIKey, cfg.Provider.Timeout), cfg),
	}
}
