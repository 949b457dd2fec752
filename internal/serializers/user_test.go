package serializers

import (
	"errors"
	"testing"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/mock"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoStore struct {
	repo *mock.UsersRepository
}

func (s repoStore) CreateUser(u domain.User) (domain.User, error) {
	return u, s.repo.Create(u)
}

func (s repoStore) UpdateUser(u domain.User) error {
	return s.repo.Update(u)
}

func existingUser(t *testing.T) domain.User {
	u, err := domain.NewUser("john", "john@example.com", "John", "Doe", "correct-horse")
	require.NoError(t, err)
	return u
}

func TestSerializerFields(t *testing.T) {
	repo := mock.NewUsersRepository()
	assert.Equal(t, domain.FieldNames{"id", "email", "username", "password"}, NewUserCreateSerializer(repo).Fields())
	assert.Equal(t, domain.FieldNames{"id", "email", "username", "first_name", "last_name"}, NewUserSerializer(repo).Fields())
	assert.False(t, NewUserSerializer(repo).Fields().Has("password"))
}

func TestUserSerializerRepresentation(t *testing.T) {
	u := existingUser(t)
	s := NewUserSerializer(mock.NewUsersRepository(u))
	r := s.Represent(u)
	assert.Equal(t, domain.FieldNames{"id", "email", "username", "first_name", "last_name"}, r.Names())

	data, err := jsoniter.Marshal(r)
	require.NoError(t, err)
	expected := `{"id":"` + u.ID + `","email":"john@example.com","username":"john","first_name":"John","last_name":"Doe"}`
	assert.Equal(t, expected, string(data))
	assert.NotContains(t, string(data), "password")
}

func TestUserCreateSerializerHidesPassword(t *testing.T) {
	u := existingUser(t)
	s := NewUserCreateSerializer(mock.NewUsersRepository())
	r := s.Represent(u)
	assert.Equal(t, domain.FieldNames{"id", "email", "username"}, r.Names())
	_, ok := r.Get("password")
	assert.False(t, ok)
}

func TestUserCreateSerializerCreate(t *testing.T) {
	repo := mock.NewUsersRepository()
	s := NewUserCreateSerializer(repo)
	vd, err := s.Validate(map[string]interface{}{
		"id":       "ignored",
		"email":    "Jane@Example.com",
		"username": "jane",
		"password": "correct-horse",
		"is_staff": true,
	})
	require.NoError(t, err)
	assert.NotContains(t, vd, "id")
	assert.NotContains(t, vd, "is_staff")

	u, err := s.Create(vd, repoStore{repo})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.False(t, u.IsStaff)
	assert.True(t, u.CheckPassword("correct-horse"))

	stored, err := repo.GetByUsername("jane")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)
}

func TestUserCreateSerializerErrors(t *testing.T) {
	repo := mock.NewUsersRepository(existingUser(t))
	s := NewUserCreateSerializer(repo)

	_, err := s.Validate(map[string]interface{}{})
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgRequired}, verr["username"])
	assert.Equal(t, []string{MsgRequired}, verr["password"])
	assert.False(t, verr.Has("email"))

	_, err = s.Validate(map[string]interface{}{
		"email":    "john@example.com",
		"username": "john",
		"password": "correct-horse",
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgUsernameTaken}, verr["username"])
	assert.Equal(t, []string{MsgEmailTaken}, verr["email"])

	_, err = s.Validate(map[string]interface{}{
		"email":    "new@example.com",
		"username": "newuser",
		"password": "1234",
	})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr["password"], "This password is entirely numeric.")

	_, err = s.Validate(map[string]interface{}{
		"email":    "bad",
		"username": 12,
		"password": "correct-horse",
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgInvalidEmail}, verr["email"])
	assert.Equal(t, []string{MsgNotString}, verr["username"])
}

func TestUserSerializerUpdate(t *testing.T) {
	u := existingUser(t)
	other, err := domain.NewUser("jane", "jane@example.com", "", "", "")
	require.NoError(t, err)
	repo := mock.NewUsersRepository(u, other)
	s := NewUserSerializer(repo)

	vd, err := s.Validate(map[string]interface{}{"first_name": "Johnny", "username": "ignored"}, u, true)
	require.NoError(t, err)
	updated, err := s.Update(u, vd, repoStore{repo})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.FirstName)
	assert.Equal(t, "john", updated.Username)
	assert.Equal(t, "Doe", updated.LastName)

	// own email is not a conflict
	_, err = s.Validate(map[string]interface{}{"email": "john@example.com"}, u, true)
	assert.NoError(t, err)

	_, err = s.Validate(map[string]interface{}{"email": "jane@example.com"}, u, true)
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgEmailTaken}, verr["email"])
}

func TestUserCreateSerializerWithoutEmail(t *testing.T) {
	repo := mock.NewUsersRepository()
	s := NewUserCreateSerializer(repo)
	vd, err := s.Validate(map[string]interface{}{
		"username": "noemail",
		"password": "Zq8!unique-pass",
	})
	require.NoError(t, err)
	u, err := s.Create(vd, repoStore{repo})
	require.NoError(t, err)
	assert.Equal(t, "", u.Email)

	vd, err = s.Validate(map[string]interface{}{
		"username": "blankemail",
		"email":    "",
		"password": "Zq8!unique-pass",
	})
	require.NoError(t, err)
	_, err = s.Create(vd, repoStore{repo})
	assert.NoError(t, err)
}

var errRepository = errors.New("connection refused")

type failingRepository struct {
	*mock.UsersRepository
}

func (r failingRepository) UsernameExists(string) (bool, error) { return false, errRepository }
func (r failingRepository) EmailExists(string) (bool, error)    { return false, errRepository }

func TestSerializerRepositoryError(t *testing.T) {
	repo := failingRepository{mock.NewUsersRepository()}

	_, err := NewUserCreateSerializer(repo).Validate(map[string]interface{}{
		"username": "jane",
		"password": "correct-horse",
	})
	assert.ErrorIs(t, err, errRepository)
	var verr domain.ValidationError
	assert.False(t, errors.As(err, &verr))

	u := existingUser(t)
	_, err = NewUserSerializer(repo).Validate(map[string]interface{}{"email": "jane@example.com"}, u, true)
	assert.ErrorIs(t, err, errRepository)
}
