package server

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// tokenEndpoint matches token views, which must work with a stale
// Authorization header still set by the client.
func tokenEndpoint(c echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/auth/jwt/")
}

func (s *Server) AddRoutes(e *echo.Echo) {
	e.Use(AuthenticationMiddleware(s.auth, tokenEndpoint))
	LoginRequired := LoginRequiredMiddlewareWithConfig(s.auth)
	StaffRequired := StaffAccessMiddleware(s.auth)

	e.POST("/auth/jwt/create", s.handleTokenCreate())
	e.POST("/auth/jwt/refresh", s.handleTokenRefresh())
	e.POST("/auth/jwt/verify", s.handleTokenVerify())
	e.POST("/auth/jwt/blacklist", s.handleTokenBlacklist())

	e.POST("/auth/users", s.handleCreateUser())
	e.GET("/auth/users", s.handleGetUsers, LoginRequired)
	e.GET("/auth/users/me", s.handleGetMe, LoginRequired)
	e.PUT("/auth/users/me", s.handleUpdateMe(false), LoginRequired)
	e.PATCH("/auth/users/me", s.handleUpdateMe(true), LoginRequired)
	e.DELETE("/auth/users/me", s.handleDeleteMe(), LoginRequired)
	e.POST("/auth/users/set_password", s.handleSetPassword(), LoginRequired)
	e.POST("/auth/users/activation", s.handleActivation())
	e.POST("/auth/users/resend_activation", s.handleResendActivation())
	e.POST("/auth/users/reset_password", s.handleResetPassword())
	e.POST("/auth/users/reset_password_confirm", s.handleResetPasswordConfirm())
	e.GET("/auth/users/:id", s.handleGetUser, LoginRequired)
	e.PUT("/auth/users/:id", s.handleUpdateUser(false), LoginRequired)
	e.PATCH("/auth/users/:id", s.handleUpdateUser(true), LoginRequired)
	e.DELETE("/auth/users/:id", s.handleDeleteUser(), LoginRequired)
	e.GET("/auth/check", s.handleCheckAvailability())

	e.GET("/api/admin/models", s.handleAdminModels, StaffRequired)
	e.GET("/api/admin/:model/config", s.handleAdminConfig, StaffRequired)
	e.GET("/api/admin/users", s.handleAdminChangelist, StaffRequired)
	e.POST("/api/admin/users", s.handleAdminAddUser(), StaffRequired)
	e.GET("/api/admin/users/:id", s.handleAdminChangeForm, StaffRequired)
	e.PUT("/api/admin/users/:id", s.handleAdminUpdateUser(), StaffRequired)
	e.DELETE("/api/admin/users/:id", s.handleAdminDeleteUser, StaffRequired)
	e.POST("/api/admin/users/:id/send_activation_email", s.handleAdminSendActivationEmail, StaffRequired)
}
