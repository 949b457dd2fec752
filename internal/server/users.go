package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gisquick/accounts-server/internal/application"
	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/serializers"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgNotFound = "Not found."

// accountError maps accounts service errors to API errors.
func accountError(err error) error {
	switch {
	case errors.Is(err, application.ErrInvalidUID):
		return newValidationError("uid", application.ErrInvalidUID.Error())
	case errors.Is(err, application.ErrInvalidToken):
		return newValidationError("token", application.ErrInvalidToken.Error())
	case errors.Is(err, application.ErrStaleToken):
		return echo.NewHTTPError(http.StatusForbidden, application.ErrStaleToken.Error())
	case errors.Is(err, application.ErrInvalidPassword):
		return newValidationError("current_password", application.ErrInvalidPassword.Error())
	case errors.Is(err, application.ErrEmailsDisabled):
		return echo.NewHTTPError(http.StatusBadRequest, application.ErrEmailsDisabled.Error())
	}
	return err
}

func (s *Server) getUserByID(id string) (domain.User, error) {
	user, err := s.accountsService.Repository.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, echo.NewHTTPError(http.StatusNotFound, msgNotFound)
		}
		return domain.User{}, fmt.Errorf("get user [%s]: %w", id, err)
	}
	return user, nil
}

// targetUser returns user from path parameter. Non-staff users can access
// only their own account.
func (s *Server) targetUser(c echo.Context) (domain.User, domain.User, error) {
	current, err := s.requestUser(c)
	if err != nil {
		return domain.User{}, domain.User{}, err
	}
	id := c.Param("id")
	if !current.IsStaff && id != current.ID {
		return current, domain.User{}, echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	user, err := s.getUserByID(id)
	return current, user, err
}

func (s *Server) handleCreateUser() func(echo.Context) error {
	return func(c echo.Context) error {
		if !s.Config.SignupAPI {
			current, err := s.auth.GetUser(c)
			if err != nil {
				return err
			}
			if current == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
			}
			if !current.IsStaff {
				return echo.NewHTTPError(http.StatusForbidden, msgPermissionDenied)
			}
		}
		data, err := bindData(c)
		if err != nil {
			return err
		}
		vd, err := s.userCreate.Validate(data)
		if err != nil {
			return err
		}
		// activation link goes by email
		if email, _ := vd.String("email"); email == "" && s.accountsService.ActivationRequired() {
			return newValidationError("email", serializers.MsgRequired)
		}
		user, err := s.userCreate.Create(vd, s.accountsService)
		if err != nil {
			if user.ID == "" {
				return err
			}
			// account is stored, activation email can be requested again
			s.log.Errorw("sending activation email", "username", user.Username, zap.Error(err))
		}
		return c.JSON(http.StatusCreated, s.userCreate.Represent(user))
	}
}

func (s *Server) handleGetUsers(c echo.Context) error {
	current, err := s.requestUser(c)
	if err != nil {
		return err
	}
	users := []domain.User{current}
	if current.IsStaff {
		users, _, err = s.accountsService.ListUsers(domain.UsersQuery{Ordering: domain.FieldNames{"username"}})
		if err != nil {
			return err
		}
	}
	data := make([]serializers.Representation, len(users))
	for i, u := range users {
		data[i] = s.user.Represent(u)
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleGetMe(c echo.Context) error {
	user, err := s.requestUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.user.Represent(user))
}

func (s *Server) updateUser(c echo.Context, user domain.User, partial bool) error {
	data, err := bindData(c)
	if err != nil {
		return err
	}
	vd, err := s.user.Validate(data, user, partial)
	if err != nil {
		return err
	}
	updated, err := s.user.Update(user, vd, s.accountsService)
	if err != nil {
		return err
	}
	s.auth.ForgetUser(c)
	return c.JSON(http.StatusOK, s.user.Represent(updated))
}

func (s *Server) handleUpdateMe(partial bool) func(echo.Context) error {
	return func(c echo.Context) error {
		user, err := s.requestUser(c)
		if err != nil {
			return err
		}
		return s.updateUser(c, user, partial)
	}
}

func (s *Server) handleGetUser(c echo.Context) error {
	_, user, err := s.targetUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.user.Represent(user))
}

func (s *Server) handleUpdateUser(partial bool) func(echo.Context) error {
	return func(c echo.Context) error {
		_, user, err := s.targetUser(c)
		if err != nil {
			return err
		}
		return s.updateUser(c, user, partial)
	}
}

type deleteForm struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
}

func (s *Server) handleDeleteMe() func(echo.Context) error {
	return func(c echo.Context) error {
		user, err := s.requestUser(c)
		if err != nil {
			return err
		}
		form := new(deleteForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if err := s.accountsService.DeleteUser(user, form.CurrentPassword); err != nil {
			return accountError(err)
		}
		s.auth.ForgetUser(c)
		return c.NoContent(http.StatusNoContent)
	}
}

// handleDeleteUser deletes account by id. Own account has to be confirmed
// with current password, staff users can delete other accounts without it.
func (s *Server) handleDeleteUser() func(echo.Context) error {
	return func(c echo.Context) error {
		current, user, err := s.targetUser(c)
		if err != nil {
			return err
		}
		if current.ID == user.ID {
			form := new(deleteForm)
			if err := bindForm(c, form); err != nil {
				return err
			}
			if err := s.accountsService.DeleteUser(user, form.CurrentPassword); err != nil {
				return accountError(err)
			}
			s.auth.ForgetUser(c)
		} else if err := s.accountsService.Repository.Delete(user.ID); err != nil {
			return fmt.Errorf("deleting user [%s]: %w", user.Username, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) handleSetPassword() func(echo.Context) error {
	type SetPasswordForm struct {
		NewPassword     string `json:"new_password" form:"new_password" validate:"required"`
		CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	}
	return func(c echo.Context) error {
		user, err := s.requestUser(c)
		if err != nil {
			return err
		}
		form := new(SetPasswordForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if msgs := domain.ValidatePassword(form.NewPassword, user); len(msgs) > 0 {
			return domain.ValidationError{"new_password": msgs}
		}
		if err := s.accountsService.SetPassword(user, form.CurrentPassword, form.NewPassword); err != nil {
			return accountError(err)
		}
		s.auth.ForgetUser(c)
		return c.NoContent(http.StatusNoContent)
	}
}

type uidTokenForm struct {
	UID   string `json:"uid" form:"uid" validate:"required"`
	Token string `json:"token" form:"token" validate:"required"`
}

func (s *Server) handleActivation() func(echo.Context) error {
	return func(c echo.Context) error {
		form := new(uidTokenForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		user, err := s.accountsService.Activate(form.UID, form.Token)
		if err != nil {
			if user.ID == "" {
				return accountError(err)
			}
			s.log.Errorw("sending confirmation email", "username", user.Username, zap.Error(err))
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type emailForm struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

func (s *Server) handleResendActivation() func(echo.Context) error {
	return func(c echo.Context) error {
		form := new(emailForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if err := s.accountsService.ResendActivation(form.Email); err != nil {
			return accountError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) handleResetPassword() func(echo.Context) error {
	return func(c echo.Context) error {
		form := new(emailForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		if err := s.accountsService.RequestPasswordReset(form.Email); err != nil {
			return accountError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) handleResetPasswordConfirm() func(echo.Context) error {
	type ResetPasswordConfirmForm struct {
		uidTokenForm
		NewPassword string `json:"new_password" form:"new_password" validate:"required"`
	}
	return func(c echo.Context) error {
		form := new(ResetPasswordConfirmForm)
		if err := bindForm(c, form); err != nil {
			return err
		}
		user, err := s.accountsService.CheckResetToken(form.UID, form.Token)
		if err != nil {
			return accountError(err)
		}
		if msgs := domain.ValidatePassword(form.NewPassword, user); len(msgs) > 0 {
			return domain.ValidationError{"new_password": msgs}
		}
		if err := s.accountsService.ResetPasswordConfirm(form.UID, form.Token, form.NewPassword); err != nil {
			return accountError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) handleCheckAvailability() func(echo.Context) error {
	type Resp struct {
		Available bool `json:"available"`
	}
	return func(c echo.Context) error {
		field := c.QueryParam("field")
		value := c.QueryParam("value")

		if field == "" || value == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid parameters")
		}
		var exists bool
		var err error
		switch field {
		case "username":
			exists, err = s.accountsService.Repository.UsernameExists(value)
		case "email":
			exists, err = s.accountsService.Repository.EmailExists(domain.NormalizeEmail(value))
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid value of 'field' parameter")
		}
		if err != nil {
			return fmt.Errorf("check account availability: %w", err)
		}
		return c.JSON(http.StatusOK, Resp{Available: !exists})
	}
}
