package server

import (
	"errors"
	"net/http"

	"github.com/gisquick/accounts-server/internal/server/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgTokenInvalid = "Token is invalid or expired"

func tokenError(err error) error {
	if errors.Is(err, auth.ErrBlacklistedToken) {
		return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrBlacklistedToken.Error())
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserInactive) {
		return echo.NewHTTPError(http.StatusUnauthorized, msgTokenInvalid).SetInternal(err)
	}
	return err
}

func (s *Server) handleTokenCreate() func(echo.Context) error {
	type LoginForm struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}
	return func(c echo.Context) error {
		form := new(LoginForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		user, err := s.auth.Authenticate(form.Username, form.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return err
		}
		tokens, err := s.auth.IssueTokens(user)
		if err != nil {
			s.log.Errorw("issuing tokens", "user", user.Username, zap.Error(err))
			return err
		}
		return c.JSON(http.StatusOK, tokens)
	}
}

type refreshForm struct {
	Refresh string `json:"refresh" form:"refresh" validate:"required"`
}

func (s *Server) handleTokenRefresh() func(echo.Context) error {
	return func(c echo.Context) error {
		form := new(refreshForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		tokens, err := s.auth.Refresh(c.Request().Context(), form.Refresh)
		if err != nil {
			return tokenError(err)
		}
		return c.JSON(http.StatusOK, tokens)
	}
}

func (s *Server) handleTokenVerify() func(echo.Context) error {
	type VerifyForm struct {
		Token string `json:"token" form:"token" validate:"required"`
	}
	return func(c echo.Context) error {
		form := new(VerifyForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if err := s.auth.Verify(c.Request().Context(), form.Token); err != nil {
			return tokenError(err)
		}
		return c.JSON(http.StatusOK, struct{}{})
	}
}

func (s *Server) handleTokenBlacklist() func(echo.Context) error {
	return func(c echo.Context) error {
		form := new(refreshForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if err := s.auth.Blacklist(c.Request().Context(), form.Refresh); err != nil {
			return tokenError(err)
		}
		return c.JSON(http.StatusOK, struct{}{})
	}
}
