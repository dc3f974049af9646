package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Context keys set by the middlewares below.
const (
	ContextUserID       = "user_id"
	ContextUser         = "user"
	ContextSessionToken = "session_token"
	ContextClaims       = "claims"
)

type sessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*entity.Session, *entity.User, error)
}

type tokenVerifier interface {
	Verify(token string) *service.Claims
}

type AuthMiddleware struct {
	sessions   sessionResolver
	tokens     tokenVerifier
	cookieName string
}

func NewAuthMiddleware(sessions sessionResolver, tokens tokenVerifier, cookieName string) *AuthMiddleware {
	if cookieName == "" {
		cookieName = "session_id"
	}
	return &AuthMiddleware{sessions: sessions, tokens: tokens, cookieName: cookieName}
}

// RequireSession accepts the session cookie or, for API clients, the same token as a
// Bearer credential.
func (m *AuthMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := m.sessionToken(c)
		if token == "" {
			logrus.Debug("Missing session")
			return unauthorized(c, "not authenticated")
		}

		session, user, err := m.sessions.ResolveSession(c.Request().Context(), token)
		if err != nil {
			logrus.WithError(err).Error("Session lookup failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "internal server error",
			})
		}
		if session == nil {
			logrus.Debug("Invalid or expired session")
			return unauthorized(c, "not authenticated")
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Set(ContextSessionToken, session.Token)

		return next(c)
	}
}

// RequireAdmin must run after RequireSession.
func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get(ContextUser).(*entity.User)
		if !ok || user == nil {
			return unauthorized(c, "not authenticated")
		}
		if !user.IsAdmin {
			logrus.WithField("user_id", user.ID).Warn("Admin access denied")
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "admin access required",
			})
		}
		return next(c)
	}
}

// RequireToken authenticates with a signed access token in the Authorization header.
func (m *AuthMiddleware) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return unauthorized(c, "missing authorization header")
		}

		tokenString, ok := bearer(authHeader)
		if !ok {
			logrus.Debug("Invalid authorization header format")
			return unauthorized(c, "invalid authorization header format")
		}

		claims := m.tokens.Verify(tokenString)
		if claims == nil {
			logrus.Debug("Invalid or expired access token")
			return unauthorized(c, "invalid or expired token")
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)

		return next(c)
	}
}

func (m *AuthMiddleware) sessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := bearer(c.Request().Header.Get("Authorization")); ok {
		return token
	}
	return ""
}

func bearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": message,
	})
}
