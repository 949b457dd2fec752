package mock

import (
	"strings"
	"sync"

	"github.com/gisquick/accounts-server/internal/domain"
)

// UsersRepository is an in-memory users repository.
type UsersRepository struct {
	sync.RWMutex
	users map[string]domain.User
}

func NewUsersRepository(users ...domain.User) *UsersRepository {
	r := &UsersRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *UsersRepository) conflicts(user domain.User) bool {
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username || (user.Email != "" && strings.EqualFold(u.Email, user.Email)) {
			return true
		}
	}
	return false
}

func (r *UsersRepository) Create(user domain.User) error {
	r.Lock()
	defer r.Unlock()
	if _, exists := r.users[user.ID]; exists || r.conflicts(user) {
		return domain.ErrUserExists
	}
	r.users[user.ID] = user
	return nil
}

func (r *UsersRepository) Update(user domain.User) error {
	r.Lock()
	defer r.Unlock()
	if _, exists := r.users[user.ID]; !exists {
		return domain.ErrUserNotFound
	}
	if r.conflicts(user) {
		return domain.ErrUserExists
	}
	r.users[user.ID] = user
	return nil
}

func (r *UsersRepository) Delete(id string) error {
	r.Lock()
	defer r.Unlock()
	delete(r.users, id)
	return nil
}

func (r *UsersRepository) find(test func(u domain.User) bool) (domain.User, error) {
	r.RLock()
	defer r.RUnlock()
	for _, u := range r.users {
		if test(u) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (r *UsersRepository) GetByID(id string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *UsersRepository) GetByUsername(username string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *UsersRepository) GetByEmail(email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return email != "" && strings.EqualFold(u.Email, email) })
}

func (r *UsersRepository) EmailExists(email string) (bool, error) {
	_, err := r.GetByEmail(email)
	return err == nil, nil
}

func (r *UsersRepository) UsernameExists(username string) (bool, error) {
	_, err := r.GetByUsername(username)
	return err == nil, nil
}

func (r *UsersRepository) filter(query domain.UsersQuery) []domain.User {
	r.RLock()
	defer r.RUnlock()
	res := []domain.User{}
	for _, u := range r.users {
		if query.Match(u) {
			res = append(res, u)
		}
	}
	if len(query.Ordering) == 0 {
		query.Ordering = domain.FieldNames{"username"}
	}
	query.Sort(res)
	return res
}

func (r *UsersRepository) List(query domain.UsersQuery) ([]domain.User, error) {
	return query.Page(r.filter(query)), nil
}

func (r *UsersRepository) Count(query domain.UsersQuery) (int, error) {
	return len(r.filter(query)), nil
}
