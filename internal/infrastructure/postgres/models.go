package postgres

import (
	"time"

	"github.com/gisquick/accounts-server/internal/domain"
)

type User struct {
	ID          string     `db:"id"`
	Username    string     `db:"username"`
	Email       string     `db:"email"`
	Password    []byte     `db:"password"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	IsStaff     bool       `db:"is_staff"`
	IsActive    bool       `db:"is_active"`
	IsSuperuser bool       `db:"is_superuser"`
	DateJoined  *time.Time `db:"date_joined"`
	LastLogin   *time.Time `db:"last_login"`
}

func toDomainUser(user User) domain.User {
	return domain.User{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Password:    user.Password,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		IsStaff:     user.IsStaff,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		DateJoined:  user.DateJoined,
		LastLogin:   user.LastLogin,
	}
}

func toUser(u domain.User) User {
	return User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Password:    u.Password,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}
