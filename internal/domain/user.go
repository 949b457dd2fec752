package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists      = errors.New("User already exists")
	ErrUserActive      = errors.New("User was already activated")
	ErrUserNotFound    = errors.New("User not found")
	ErrInvalidUsername = errors.New("Enter a valid username")
	ErrInvalidEmail    = errors.New("Enter a valid email address")
	ErrPasswordTooLong = errors.New("Password is too long")
)

// Prefix of password hashes which never match any password.
const unusablePasswordPrefix = "!"

const MaxUsernameLength = 150

var isValidUsername = regexp.MustCompile(`^[\w.@+-]+$`).MatchString

func ValidateUsername(v string) bool {
	return v != "" && len(v) <= MaxUsernameLength && isValidUsername(v)
}

func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// User entity
type User struct {
	ID          string
	Email       string
	Username    string
	Password    []byte
	FirstName   string
	LastName    string
	IsStaff     bool
	IsActive    bool
	IsSuperuser bool
	DateJoined  *time.Time
	LastLogin   *time.Time
}

// UserFields lists attribute names of the user model in declaration order.
var UserFields = FieldNames{
	"id",
	"email",
	"username",
	"password",
	"first_name",
	"last_name",
	"is_staff",
	"is_active",
	"is_superuser",
	"date_joined",
	"last_login",
}

// FieldValue returns value of the attribute with given field name.
func (u *User) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "id":
		return u.ID, true
	case "email":
		return u.Email, true
	case "username":
		return u.Username, true
	case "password":
		return string(u.Password), true
	case "first_name":
		return u.FirstName, true
	case "last_name":
		return u.LastName, true
	case "is_staff":
		return u.IsStaff, true
	case "is_active":
		return u.IsActive, true
	case "is_superuser":
		return u.IsSuperuser, true
	case "date_joined":
		return u.DateJoined, true
	case "last_login":
		return u.LastLogin, true
	}
	return nil, false
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return err
	}
	u.Password = hashedPassword
	return nil
}

func (u *User) CheckPassword(password string) bool {
	if !u.HasUsablePassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword(u.Password, []byte(password)) == nil
}

func (u *User) SetUnusablePassword() {
	u.Password = []byte(unusablePasswordPrefix + uuid.NewString())
}

func (u *User) HasUsablePassword() bool {
	return len(u.Password) > 0 && !strings.HasPrefix(string(u.Password), unusablePasswordPrefix)
}

func (u *User) Activate() error {
	if u.IsActive {
		return ErrUserActive
	}
	u.IsActive = true
	return nil
}

func (u *User) FullName() string {
	name := strings.TrimSpace(fmt.Sprintf("%s %s", u.FirstName, u.LastName))
	if name == "" {
		name = u.Username
	}
	return name
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser creates active user with a new identifier. Empty password results
// in unusable password.
func NewUser(username, email, firstName, lastName, password string) (User, error) {
	username = strings.TrimSpace(username)
	if !ValidateUsername(username) {
		return User{}, fmt.Errorf("%w: '%s'", ErrInvalidUsername, username)
	}
	email = NormalizeEmail(email)
	if email != "" && !ValidateEmail(email) {
		return User{}, fmt.Errorf("%w: '%s'", ErrInvalidEmail, email)
	}
	now := time.Now().UTC()
	user := User{
		ID:         uuid.NewString(),
		Username:   username,
		Email:      email,
		FirstName:  strings.TrimSpace(firstName),
		LastName:   strings.TrimSpace(lastName),
		IsActive:   true,
		DateJoined: &now,
	}
	if password != "" {
		if err := user.SetPassword(password); err != nil {
			return user, err
		}
	} else {
		user.SetUnusablePassword()
	}
	return user, nil
}

// UsersRepository repository interface
type UsersRepository interface {
	Create(user User) error
	Update(user User) error
	Delete(id string) error
	GetByID(id string) (User, error)
	GetByUsername(username string) (User, error)
	GetByEmail(email string) (User, error)
	EmailExists(email string) (bool, error)
	UsernameExists(username string) (bool, error)
	List(query UsersQuery) ([]User, error)
	Count(query UsersQuery) (int, error)
}
