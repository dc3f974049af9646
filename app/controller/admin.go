package controller

import (
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-linkhub/app/dto/http"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AdminController handles user management. Routes are expected behind RequireAdmin.
type AdminController struct {
	users *service.UserService
}

func NewAdminController(users *service.UserService) *AdminController {
	return &AdminController{users: users}
}

func (c *AdminController) ListUsers(ctx echo.Context) error {
	users, err := c.users.List(ctx.Request().Context())
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("route", ctx.Path()), "List users", err)
	}
	return ctx.JSON(http.StatusOK, httpdto.NewUserListResponse(users))
}

func (c *AdminController) CreateUser(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.AdminCreateUserRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind create user request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	actorID, _ := currentUserID(ctx)
	log := logrus.WithFields(logrus.Fields{"actor_id": actorID, "username": req.Username})
	user, err := c.users.CreateByAdmin(ctx.Request().Context(), service.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return writeServiceError(ctx, log, "Create user", err)
	}

	return ctx.JSON(http.StatusCreated, httpdto.NewUserResponse(user))
}

func (c *AdminController) UpdateUser(ctx echo.Context) error {
	userID, ok := pathUserID(ctx)
	if !ok {
		return badRequest(ctx, "invalid user id")
	}

	req, err := httpdto.Bind[httpdto.AdminUpdateUserRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind update user request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	actorID, _ := currentUserID(ctx)
	log := logrus.WithFields(logrus.Fields{"actor_id": actorID, "user_id": userID})
	user, err := c.users.UpdateByAdmin(ctx.Request().Context(), userID, service.UserChanges{
		Email:    req.Email,
		FullName: req.FullName,
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return writeServiceError(ctx, log, "Update user", err)
	}

	log.Info("User updated by admin")
	return ctx.JSON(http.StatusOK, httpdto.NewUserResponse(user))
}

func (c *AdminController) DeleteUser(ctx echo.Context) error {
	userID, ok := pathUserID(ctx)
	if !ok {
		return badRequest(ctx, "invalid user id")
	}
	actorID, ok := currentUserID(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	if err := c.users.Delete(ctx.Request().Context(), actorID, userID); err != nil {
		return writeServiceError(ctx, logrus.WithFields(logrus.Fields{"actor_id": actorID, "user_id": userID}), "Delete user", err)
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "user deleted successfully"})
}
