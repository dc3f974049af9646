package controller

import (
	"errors"
	"net/http"
	"strconv"

	httpdto "github.com/vibast-solutions/ms-go-linkhub/app/dto/http"
	"github.com/vibast-solutions/ms-go-linkhub/app/middleware"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// writeServiceError maps service errors onto status codes. Anything unknown is logged
// and reported as a generic 500.
func writeServiceError(ctx echo.Context, log *logrus.Entry, action string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrCannotDeleteSelf):
		log.WithError(err).Warn(action + " rejected")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidToken):
		log.Warn(action + " failed: invalid token")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: service.ErrInvalidToken.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn(action + " failed: invalid credentials")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrUserExists):
		log.Warn(action + " failed: user already exists")
		return ctx.JSON(http.StatusConflict, httpdto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		log.Warn(action + " failed: user not found")
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
	case errors.Is(err, service.ErrUpstreamConfig):
		log.Error(action + " failed: provider is not configured")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: service.ErrUpstreamConfig.Error()})
	case errors.Is(err, service.ErrUpstreamRequest):
		log.WithError(err).Warn(action + " failed: provider request")
		return ctx.JSON(http.StatusBadGateway, httpdto.ErrorResponse{Error: service.ErrUpstreamRequest.Error()})
	default:
		log.WithError(err).Error(action + " failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: message})
}

func currentUserID(ctx echo.Context) (uint64, bool) {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	return userID, ok
}

func pathUserID(ctx echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
