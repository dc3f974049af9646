package controller

import (
	"errors"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-linkhub/app/dto/http"
	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/middleware"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ProfileController struct {
	users *service.UserService
}

func NewProfileController(users *service.UserService) *ProfileController {
	return &ProfileController{users: users}
}

// Me answers from the user loaded by the session middleware.
func (c *ProfileController) Me(ctx echo.Context) error {
	user, ok := ctx.Get(middleware.ContextUser).(*entity.User)
	if !ok || user == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "not authenticated"})
	}
	return ctx.JSON(http.StatusOK, httpdto.NewUserResponse(user))
}

// TokenMe serves token-authenticated clients, so the user is loaded fresh.
func (c *ProfileController) TokenMe(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	user, err := c.users.Get(ctx.Request().Context(), userID)
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("user_id", userID), "Token profile", err)
	}
	if !user.IsActive {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}
	return ctx.JSON(http.StatusOK, httpdto.NewUserResponse(user))
}

func (c *ProfileController) UpdateMe(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := httpdto.Bind[httpdto.UpdateProfileRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind profile request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	log := logrus.WithField("user_id", userID)
	user, err := c.users.UpdateProfile(ctx.Request().Context(), userID, req.Email, req.FullName)
	if err != nil {
		return writeServiceError(ctx, log, "Profile update", err)
	}

	log.Info("Profile updated")
	return ctx.JSON(http.StatusOK, httpdto.NewUserResponse(user))
}

func (c *ProfileController) ChangePassword(ctx echo.Context) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := httpdto.Bind[httpdto.ChangePasswordRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	sessionToken, _ := ctx.Get(middleware.ContextSessionToken).(string)
	log := logrus.WithField("user_id", userID)
	err = c.users.ChangePassword(ctx.Request().Context(), userID, req.CurrentPassword, req.NewPassword, sessionToken)
	if errors.Is(err, service.ErrInvalidCredentials) {
		log.Warn("Change password failed: current password mismatch")
		return badRequest(ctx, "current password is incorrect")
	}
	if err != nil {
		return writeServiceError(ctx, log, "Change password", err)
	}

	log.Info("Password changed")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password changed successfully"})
}
