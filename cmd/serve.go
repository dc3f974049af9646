package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/app/controller"
	"github.com/vibast-solutions/ms-go-linkhub/app/middleware"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server and the background sweeper for expired sessions and reset tokens.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	svc := newServices(cfg, db)
	e := newHTTPServer(cfg, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		runSweeper(gctx, svc, cfg.Session.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("Server stopped with error")
	}
	logrus.Info("Server stopped")
}

func newHTTPServer(cfg *config.Config, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("2M"))

	cookie := controller.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}
	controller.RegisterRoutes(e, controller.Controllers{
		Auth:     controller.NewAuthController(svc.users, svc.sessions, svc.resets, svc.tokens, cfg.JWT.TTL, cookie),
		Profile:  controller.NewProfileController(svc.users),
		Accounts: controller.NewAccountController(svc.links),
		Admin:    controller.NewAdminController(svc.users),
	}, middleware.NewAuthMiddleware(svc.sessions, svc.tokens, cfg.Session.CookieName))

	return e
}

// runSweeper removes expired sessions and reset tokens every interval until ctx ends.
func runSweeper(ctx context.Context, svc *services, interval time.Duration) {
	if interval <= 0 {
		logrus.Info("Session sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

func sweep(ctx context.Context, svc *services) (sessions, tokens int64) {
	sessions, err := svc.sessions.SweepExpired(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Session sweep failed")
	}
	tokens, err = svc.sessions.SweepResetTokens(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Reset token sweep failed")
	}
	if sessions > 0 || tokens > 0 {
		logrus.WithFields(logrus.Fields{"sessions": sessions, "reset_tokens": tokens}).Info("Expired rows removed")
	}
	return sessions, tokens
}
