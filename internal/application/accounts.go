package application

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gisquick/accounts-server/internal/domain"
)

var (
	ErrInvalidUID      = errors.New("Invalid user id or user doesn't exist.")
	ErrInvalidToken    = errors.New("Invalid token for given user.")
	ErrStaleToken      = errors.New("Stale token for given user.")
	ErrEmailNotSet     = errors.New("Account does not have email address")
	ErrInvalidPassword = errors.New("Invalid password.")
	ErrEmailsDisabled  = errors.New("Emails are not enabled")
)

type TokenGenerator interface {
	GenerateToken(claims string) (string, error)
	CheckToken(token, claims string) error
}

type EmailService interface {
	SendActivationEmail(user domain.User, uid, token string) error
	SendConfirmationEmail(user domain.User) error
	SendPasswordResetEmail(user domain.User, uid, token string) error
	SendPasswordChangedEmail(user domain.User) error
}

type AccountsService struct {
	Repository domain.UsersRepository
	Email      EmailService
	tokenGen   TokenGenerator
	// New accounts stay inactive until activated from email link.
	activation bool
}

func NewAccountsService(email EmailService, usersRepo domain.UsersRepository, tokenGen TokenGenerator, activation bool) *AccountsService {
	return &AccountsService{
		Repository: usersRepo,
		Email:      email,
		tokenGen:   tokenGen,
		activation: activation && email != nil,
	}
}

func userClaims(user domain.User) string {
	lastLogin := ""
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.UTC().String()
	}
	return fmt.Sprintf("%s:%s:%s:%s:%t", user.ID, user.Email, string(user.Password), lastLogin, user.IsActive)
}

func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func DecodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", ErrInvalidUID
	}
	return string(id), nil
}

func (s *AccountsService) SupportEmails() bool {
	return s.Email != nil
}

func (s *AccountsService) ActivationRequired() bool {
	return s.activation
}

// CreateUser stores new user. When activation is required, user is stored
// as inactive and activation email is sent.
func (s *AccountsService) CreateUser(user domain.User) (domain.User, error) {
	if s.activation {
		user.IsActive = false
	}
	if err := s.Repository.Create(user); err != nil {
		return domain.User{}, err
	}
	if s.activation && user.Email != "" {
		if err := s.SendActivationEmail(user); err != nil {
			return user, err
		}
	}
	return user, nil
}

func (s *AccountsService) UpdateUser(user domain.User) error {
	return s.Repository.Update(user)
}

func (s *AccountsService) SendActivationEmail(user domain.User) error {
	if s.Email == nil {
		return ErrEmailsDisabled
	}
	if user.Email == "" {
		return ErrEmailNotSet
	}
	token, err := s.tokenGen.GenerateToken(userClaims(user))
	if err != nil {
		return fmt.Errorf("generating activation token: %w", err)
	}
	if err := s.Email.SendActivationEmail(user, EncodeUID(user.ID), token); err != nil {
		return fmt.Errorf("sending activation email [%s]: %w", user.Email, err)
	}
	return nil
}

func (s *AccountsService) userFromUID(uid string) (domain.User, error) {
	id, err := DecodeUID(uid)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.Repository.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, ErrInvalidUID
		}
		return domain.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

func (s *AccountsService) Activate(uid, token string) (domain.User, error) {
	user, err := s.userFromUID(uid)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.tokenGen.CheckToken(token, userClaims(user)); err != nil {
		if user.IsActive {
			return domain.User{}, ErrStaleToken
		}
		return domain.User{}, ErrInvalidToken
	}
	if err := user.Activate(); err != nil {
		return domain.User{}, ErrStaleToken
	}
	if err := s.Repository.Update(user); err != nil {
		return domain.User{}, err
	}
	if s.Email != nil && user.Email != "" {
		if err := s.Email.SendConfirmationEmail(user); err != nil {
			return user, fmt.Errorf("sending confirmation email [%s]: %w", user.Email, err)
		}
	}
	return user, nil
}

// ResendActivation sends activation email again to inactive user.
// Unknown or active accounts are silently ignored.
func (s *AccountsService) ResendActivation(email string) error {
	if !s.activation {
		return ErrEmailsDisabled
	}
	user, err := s.Repository.GetByEmail(domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.IsActive || !user.HasUsablePassword() {
		return nil
	}
	return s.SendActivationEmail(user)
}

// RequestPasswordReset sends password reset link. Unknown or inactive
// accounts are silently ignored.
func (s *AccountsService) RequestPasswordReset(email string) error {
	if s.Email == nil {
		return ErrEmailsDisabled
	}
	user, err := s.Repository.GetByEmail(domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}
	token, err := s.tokenGen.GenerateToken(userClaims(user))
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	if err := s.Email.SendPasswordResetEmail(user, EncodeUID(user.ID), token); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// CheckResetToken returns user identified by password reset link.
func (s *AccountsService) CheckResetToken(uid, token string) (domain.User, error) {
	user, err := s.userFromUID(uid)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.tokenGen.CheckToken(token, userClaims(user)); err != nil {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

func (s *AccountsService) ResetPasswordConfirm(uid, token, newPassword string) error {
	user, err := s.CheckResetToken(uid, token)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("set new password: %w", err)
	}
	if !user.IsActive {
		user.IsActive = true
	}
	if err := s.Repository.Update(user); err != nil {
		return err
	}
	return s.notifyPasswordChanged(user)
}

func (s *AccountsService) SetPassword(user domain.User, currentPassword, newPassword string) error {
	if !user.CheckPassword(currentPassword) {
		return ErrInvalidPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("set new password: %w", err)
	}
	if err := s.Repository.Update(user); err != nil {
		return err
	}
	return s.notifyPasswordChanged(user)
}

func (s *AccountsService) notifyPasswordChanged(user domain.User) error {
	if s.Email == nil || user.Email == "" {
		return nil
	}
	if err := s.Email.SendPasswordChangedEmail(user); err != nil {
		return fmt.Errorf("sending password changed email [%s]: %w", user.Email, err)
	}
	return nil
}

// DeleteUser removes account after password confirmation.
func (s *AccountsService) DeleteUser(user domain.User, currentPassword string) error {
	if !user.CheckPassword(currentPassword) {
		return ErrInvalidPassword
	}
	return s.Repository.Delete(user.ID)
}

func (s *AccountsService) ListUsers(query domain.UsersQuery) ([]domain.User, int, error) {
	if err := query.Validate(); err != nil {
		return nil, 0, err
	}
	users, err := s.Repository.List(query)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	count, err := s.Repository.Count(query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}
	return users, count, nil
}
