package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/server/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgPermissionDenied = "You do not have permission to perform this action."
	msgUserInactive     = "User is inactive"
)

// AuthenticationMiddleware resolves request user from access token. Requests
// with invalid token are rejected even on public endpoints, except those
// matched by skipper.
func AuthenticationMiddleware(a *auth.AuthService, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			if _, err := a.GetUser(c); err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrInvalidToken.Error()).SetInternal(err)
				}
				if errors.Is(err, auth.ErrUserInactive) {
					return echo.NewHTTPError(http.StatusUnauthorized, msgUserInactive)
				}
				return fmt.Errorf("authentication middleware: %w", err)
			}
			return next(c)
		}
	}
}

func LoginRequiredMiddlewareWithConfig(a *auth.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.GetUser(c)
			if err != nil {
				return fmt.Errorf("login required middleware: %w", err)
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
			}
			return next(c)
		}
	}
}

func StaffAccessMiddleware(a *auth.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.GetUser(c)
			if err != nil {
				return fmt.Errorf("staff access middleware: %w", err)
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
			}
			if !user.IsStaff {
				return echo.NewHTTPError(http.StatusForbidden, msgPermissionDenied)
			}
			return next(c)
		}
	}
}

// requestUser returns authenticated user. Must be used behind login
// required middleware.
func (s *Server) requestUser(c echo.Context) (domain.User, error) {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
	}
	return *user, nil
}
