package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gisquick/accounts-server/internal/admin"
	"github.com/gisquick/accounts-server/internal/application"
	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/serializers"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ChangeFormData struct {
	ID        string               `json:"id"`
	Username  string               `json:"username"`
	Fieldsets []admin.FormFieldset `json:"fieldsets"`
}

func (s *Server) userAdmin() (admin.ModelAdmin, error) {
	_, ma, err := s.adminSite.Get(admin.UserModel.Name)
	if err != nil {
		return nil, fmt.Errorf("user admin: %w", err)
	}
	return ma, nil
}

func (s *Server) handleAdminModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.adminSite.Models())
}

func (s *Server) handleAdminConfig(c echo.Context) error {
	model, ma, err := s.adminSite.Get(c.Param("model"))
	if err != nil {
		if errors.Is(err, admin.ErrNotRegistered) {
			return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
		}
		return err
	}
	return c.JSON(http.StatusOK, admin.OptionsOf(model, ma))
}

func (s *Server) handleAdminChangelist(c echo.Context) error {
	ma, err := s.userAdmin()
	if err != nil {
		return err
	}
	cl, err := admin.NewChangelist(ma, c.QueryParams())
	if err != nil {
		var perr *admin.InvalidParamError
		if errors.As(err, &perr) {
			return err
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	users, count, err := s.accountsService.ListUsers(cl.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cl.Result(users, count))
}

func (s *Server) changeForm(ma admin.ModelAdmin, u domain.User) ChangeFormData {
	return ChangeFormData{ID: u.ID, Username: u.Username, Fieldsets: admin.ChangeForm(ma, u)}
}

func (s *Server) handleAdminChangeForm(c echo.Context) error {
	ma, err := s.userAdmin()
	if err != nil {
		return err
	}
	user, err := s.getUserByID(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.changeForm(ma, user))
}

func (s *Server) handleAdminAddUser() func(echo.Context) error {
	return func(c echo.Context) error {
		ma, err := s.userAdmin()
		if err != nil {
			return err
		}
		data, err := bindData(c)
		if err != nil {
			return err
		}
		user, err := admin.NewUserFromAddForm(ma, data)
		if err != nil {
			return err
		}
		if err := s.accountsService.Repository.Create(user); err != nil {
			if errors.Is(err, domain.ErrUserExists) {
				return newValidationError("username", serializers.MsgUsernameTaken)
			}
			s.log.Errorw("creating user", "username", user.Username, zap.Error(err))
			return fmt.Errorf("creating user [%s]: %w", user.Username, err)
		}
		return c.JSON(http.StatusCreated, s.changeForm(ma, user))
	}
}

func (s *Server) handleAdminUpdateUser() func(echo.Context) error {
	return func(c echo.Context) error {
		ma, err := s.userAdmin()
		if err != nil {
			return err
		}
		user, err := s.getUserByID(c.Param("id"))
		if err != nil {
			return err
		}
		data, err := bindData(c)
		if err != nil {
			return err
		}
		user, err = admin.ApplyChange(ma, user, data)
		if err != nil {
			return err
		}
		if err := s.accountsService.UpdateUser(user); err != nil {
			if errors.Is(err, domain.ErrUserExists) {
				return domain.ValidationError{
					domain.NonFieldErrors: {"A user with that username or email address already exists."},
				}
			}
			return fmt.Errorf("updating user [%s]: %w", user.Username, err)
		}
		s.auth.ForgetUser(c)
		return c.JSON(http.StatusOK, s.changeForm(ma, user))
	}
}

func (s *Server) handleAdminDeleteUser(c echo.Context) error {
	user, err := s.getUserByID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.accountsService.Repository.Delete(user.ID); err != nil {
		return fmt.Errorf("deleting user [%s]: %w", user.Username, err)
	}
	s.auth.ForgetUser(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAdminSendActivationEmail(c echo.Context) error {
	if !s.accountsService.SupportEmails() {
		return echo.NewHTTPError(http.StatusPreconditionFailed, "Email service not supported")
	}
	user, err := s.getUserByID(c.Param("id"))
	if err != nil {
		return err
	}
	if user.IsActive {
		return echo.NewHTTPError(http.StatusBadRequest, "Account is already active")
	}
	if err := s.accountsService.SendActivationEmail(user); err != nil {
		if errors.Is(err, application.ErrEmailNotSet) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.log.Errorw("sending activation email", "username", user.Username, zap.Error(err))
		return fmt.Errorf("sending activation email: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}
