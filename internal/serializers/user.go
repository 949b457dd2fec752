package serializers

import (
	"errors"

	"github.com/gisquick/accounts-server/internal/domain"
)

// UserCreateSerializer handles account registration.
type UserCreateSerializer struct {
	ModelSerializer
}

func NewUserCreateSerializer(users domain.UsersRepository) *UserCreateSerializer {
	return &UserCreateSerializer{newModelSerializer(Meta{
		Fields:          domain.FieldNames{"id", "email", "username", "password"},
		ReadOnlyFields:  domain.FieldNames{"id"},
		WriteOnlyFields: domain.FieldNames{"password"},
		RequiredFields:  domain.FieldNames{"username", "password"},
	}, users)}
}

func (s *UserCreateSerializer) Validate(data map[string]interface{}) (ValidatedData, error) {
	vd, err := s.ModelSerializer.Validate(data, nil, false)
	if err != nil {
		return nil, err
	}
	password, _ := vd.String("password")
	candidate := domain.User{}
	applyValues(&candidate, vd)
	errs := domain.ValidationError{}
	for _, msg := range domain.ValidatePassword(password, candidate) {
		errs.Add("password", msg)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return vd, nil
}

// Create builds a new user from validated data and stores it.
func (s *UserCreateSerializer) Create(vd ValidatedData, store UserStore) (domain.User, error) {
	username, _ := vd.String("username")
	email, _ := vd.String("email")
	password, _ := vd.String("password")
	user, err := domain.NewUser(username, email, "", "", password)
	if err != nil {
		return domain.User{}, err
	}
	user, err = store.CreateUser(user)
	if errors.Is(err, domain.ErrUserExists) {
		// lost race with concurrent registration
		return domain.User{}, domain.ValidationError{"username": {MsgUsernameTaken}}
	}
	return user, err
}

// UserSerializer handles user representation and profile updates.
type UserSerializer struct {
	ModelSerializer
}

func NewUserSerializer(users domain.UsersRepository) *UserSerializer {
	return &UserSerializer{newModelSerializer(Meta{
		Fields:         domain.FieldNames{"id", "email", "username", "first_name", "last_name"},
		ReadOnlyFields: domain.FieldNames{"id", "username"},
	}, users)}
}

func (s *UserSerializer) Validate(data map[string]interface{}, instance domain.User, partial bool) (ValidatedData, error) {
	return s.ModelSerializer.Validate(data, &instance, partial)
}

// Update applies validated data to the user and stores it.
func (s *UserSerializer) Update(instance domain.User, vd ValidatedData, store UserStore) (domain.User, error) {
	applyValues(&instance, vd)
	if err := store.UpdateUser(instance); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.User{}, domain.ValidationError{"email": {MsgEmailTaken}}
		}
		return domain.User{}, err
	}
	return instance, nil
}
