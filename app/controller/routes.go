package controller

import (
	"github.com/vibast-solutions/ms-go-linkhub/app/middleware"

	"github.com/labstack/echo/v4"
)

type Controllers struct {
	Auth     *AuthController
	Profile  *ProfileController
	Accounts *AccountController
	Admin    *AdminController
}

func RegisterRoutes(e *echo.Echo, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	auth := e.Group("/auth")
	auth.POST("/register", c.Auth.Register)
	auth.POST("/login", c.Auth.Login)
	auth.POST("/logout", c.Auth.Logout)
	auth.POST("/token", c.Auth.Token)
	auth.POST("/forgot-password", c.Auth.ForgotPassword)
	auth.GET("/reset-password", c.Auth.CheckResetToken)
	auth.POST("/reset-password", c.Auth.ResetPassword)

	e.POST("/unipile/notify", c.Accounts.Notify)

	// Registered per route: a group with an empty prefix would put its middleware on
	// every unmatched path.
	session := authMiddleware.RequireSession
	e.GET("/api/me", c.Profile.Me, session)
	e.PUT("/api/me", c.Profile.UpdateMe, session)
	e.POST("/api/me/password", c.Profile.ChangePassword, session)
	e.GET("/connect/linkedin", c.Accounts.Connect, session)
	e.GET("/connect/success", c.Accounts.ConnectSuccess, session)
	e.GET("/connect/failure", c.Accounts.ConnectFailure, session)
	e.GET("/accounts", c.Accounts.List, session)
	e.GET("/accounts/stats", c.Accounts.Stats, session)
	e.DELETE("/accounts/:account_id", c.Accounts.Disconnect, session)

	admin := e.Group("/admin", authMiddleware.RequireSession, authMiddleware.RequireAdmin)
	admin.GET("/users", c.Admin.ListUsers)
	admin.POST("/users", c.Admin.CreateUser)
	admin.PUT("/users/:id", c.Admin.UpdateUser)
	admin.DELETE("/users/:id", c.Admin.DeleteUser)

	api := e.Group("/api/v1", authMiddleware.RequireToken)
	api.GET("/me", c.Profile.TokenMe)
}
