package controller

import (
	"net/http"
	"strings"
	"time"

	httpdto "github.com/vibast-solutions/ms-go-linkhub/app/dto/http"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthController struct {
	users    *service.UserService
	sessions *service.SessionService
	resets   *service.ResetService
	tokens   *service.TokenService
	tokenTTL time.Duration
	cookie   CookieConfig
}

func NewAuthController(
	users *service.UserService,
	sessions *service.SessionService,
	resets *service.ResetService,
	tokens *service.TokenService,
	tokenTTL time.Duration,
	cookie CookieConfig,
) *AuthController {
	if cookie.Name == "" {
		cookie.Name = "session_id"
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthController{
		users:    users,
		sessions: sessions,
		resets:   resets,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		cookie:   cookie,
	}
}

func (c *AuthController) Register(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.RegisterRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("username", req.Username).Debug("Register validation failed")
		return badRequest(ctx, err.Error())
	}

	log := logrus.WithField("username", req.Username)
	log.Info("Register request received")
	user, err := c.users.Register(ctx.Request().Context(), service.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return writeServiceError(ctx, log, "Register", err)
	}

	log.WithField("user_id", user.ID).Info("User registered")
	return ctx.JSON(http.StatusCreated, httpdto.NewUserResponse(user))
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.LoginRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	log := logrus.WithField("username", req.Username)
	session, user, err := c.sessions.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeServiceError(ctx, log, "Login", err)
	}

	ctx.SetCookie(&http.Cookie{
		Name:     c.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	log.WithField("user_id", user.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.LoginResponse{
		User:      httpdto.NewUserResponse(user),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout is idempotent and does not require a live session.
func (c *AuthController) Logout(ctx echo.Context) error {
	token := ""
	if cookie, err := ctx.Cookie(c.cookie.Name); err == nil {
		token = cookie.Value
	}
	if token == "" {
		if parts := strings.Fields(ctx.Request().Header.Get("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}

	if token != "" {
		if _, err := c.sessions.RevokeSession(ctx.Request().Context(), token); err != nil {
			return writeServiceError(ctx, logrus.WithField("route", ctx.Path()), "Logout", err)
		}
	}

	ctx.SetCookie(&http.Cookie{
		Name:     c.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "logged out successfully"})
}

// Token issues a signed access token for API clients that do not keep cookies.
func (c *AuthController) Token(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.TokenRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind token request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	log := logrus.WithField("username", req.Username)
	user, err := c.sessions.Authenticate(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeServiceError(ctx, log, "Token", err)
	}
	if !user.IsActive {
		return writeServiceError(ctx, log, "Token", service.ErrInvalidCredentials)
	}

	ttl := c.tokenTTL
	if requested := time.Duration(req.TTLSeconds) * time.Second; requested > 0 && requested < ttl {
		ttl = requested
	}
	token, err := c.tokens.Issue(service.ClaimsForUser(user), ttl)
	if err != nil {
		return writeServiceError(ctx, log, "Token", err)
	}

	log.WithField("user_id", user.ID).Info("Access token issued")
	return ctx.JSON(http.StatusOK, httpdto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl / time.Second),
	})
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.ForgotPasswordRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	if err = c.resets.RequestReset(ctx.Request().Context(), req.Email); err != nil {
		return writeServiceError(ctx, logrus.WithField("route", ctx.Path()), "Password reset request", err)
	}

	// Same answer whether or not the email is registered.
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{
		Message: "if the email is registered, a reset link has been sent",
	})
}

func (c *AuthController) CheckResetToken(ctx echo.Context) error {
	valid, err := c.resets.ValidateToken(ctx.Request().Context(), ctx.QueryParam("token"))
	if err != nil {
		return writeServiceError(ctx, logrus.WithField("route", ctx.Path()), "Reset token check", err)
	}
	return ctx.JSON(http.StatusOK, httpdto.TokenValidityResponse{Valid: valid})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	req, err := httpdto.Bind[httpdto.ResetPasswordRequest](ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return badRequest(ctx, "invalid request body")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	if err = c.resets.Redeem(ctx.Request().Context(), req.Token, req.NewPassword); err != nil {
		return writeServiceError(ctx, logrus.WithField("route", ctx.Path()), "Reset password", err)
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password reset successfully"})
}
