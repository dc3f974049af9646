package controller

import (
	"io"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-linkhub/app/dto/http"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

type AccountController struct {
	links *service.AccountLinkService
}

func NewAccountController(links *service.AccountLinkService) *AccountController {
	return &AccountController{links: links}
}

// Connect sends the user to the provider's hosted wizard.
func (c *AccountController) Connect(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	log := logrus.WithField("user_id", userID)
	url, err := c.links.RequestLink(ctx.Request().Context(), userID)
	if err != nil {
		return writeServiceError(ctx, log, "Connect", err)
	}

	log.Info("Redirecting to hosted account link")
	return ctx.Redirect(http.StatusFound, url)
}

// ConnectSuccess is where the provider sends the browser back. The webhook may not have
// arrived yet, so the list can still be missing the new account.
func (c *AccountController) ConnectSuccess(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	accounts, err := c.links.ListAccounts(ctx.Request().Context(), userID)
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("user_id", userID), "Connect success", err)
	}

	return ctx.JSON(http.StatusOK, httpdto.ConnectResultResponse{
		Connected: true,
		Accounts:  httpdto.NewAccountListResponse(accounts).Accounts,
		Message:   "account connection completed",
	})
}

func (c *AccountController) ConnectFailure(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, httpdto.ConnectResultResponse{
		Connected: false,
		Message:   "account connection failed or was cancelled",
	})
}

func (c *AccountController) List(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	accounts, err := c.links.ListAccounts(ctx.Request().Context(), userID)
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("user_id", userID), "List accounts", err)
	}
	return ctx.JSON(http.StatusOK, httpdto.NewAccountListResponse(accounts))
}

func (c *AccountController) Stats(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	stats, err := c.links.Stats(ctx.Request().Context(), userID)
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("user_id", userID), "Account stats", err)
	}
	return ctx.JSON(http.StatusOK, httpdto.StatsResponse{
		Total:   stats.Total,
		Active:  stats.Active,
		Pending: stats.Pending,
	})
}

func (c *AccountController) Disconnect(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	accountID := ctx.Param("account_id")
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "account_id": accountID})
	removed, err := c.links.DisconnectOwned(ctx.Request().Context(), userID, accountID)
	if err != nil {
		return writeServiceError(ctx, log, "Disconnect", err)
	}
	if !removed {
		log.Debug("Disconnect of unknown or foreign account")
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "account not found"})
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "account disconnected"})
}

// Notify receives provider webhooks. It always acknowledges so the provider does not
// retry; outcomes are only logged.
func (c *AccountController) Notify(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody+1))
	if err != nil {
		logrus.WithError(err).Warn("Failed to read webhook body")
		return ctx.JSON(http.StatusOK, httpdto.WebhookResponse{OK: true})
	}
	if len(body) > maxWebhookBody {
		logrus.WithField("limit_bytes", maxWebhookBody).Warn("Webhook body too large, event dropped")
		return ctx.JSON(http.StatusOK, httpdto.WebhookResponse{OK: true})
	}

	event, err := service.ParseWebhookEvent(body)
	if err != nil {
		logrus.WithError(err).Warn("Webhook body rejected")
		return ctx.JSON(http.StatusOK, httpdto.WebhookResponse{OK: true})
	}

	c.links.HandleWebhook(ctx.Request().Context(), event)
	return ctx.JSON(http.StatusOK, httpdto.WebhookResponse{OK: true})
}
