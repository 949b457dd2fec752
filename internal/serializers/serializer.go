// Package serializers converts users to and from their API representation.
package serializers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	MsgRequired      = "This field is required."
	MsgBlank         = "This field may not be blank."
	MsgNotString     = "Not a valid string."
	MsgNotBool       = "Must be a valid boolean."
	MsgInvalidEmail  = "Enter a valid email address."
	MsgInvalidName   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgUsernameTaken = "A user with that username already exists."
	MsgEmailTaken    = "user with this email address already exists."
)

const maxNameLength = 150

// Meta declares serializer fields.
type Meta struct {
	Fields          domain.FieldNames
	ReadOnlyFields  domain.FieldNames
	WriteOnlyFields domain.FieldNames
	RequiredFields  domain.FieldNames
}

type Field struct {
	Name  string
	Value interface{}
}

// Representation is an ordered JSON object.
type Representation []Field

func (r Representation) Get(name string) (interface{}, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Representation) Names() domain.FieldNames {
	names := make(domain.FieldNames, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

func (r Representation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("serializing field %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ValidatedData holds accepted values of writable fields.
type ValidatedData map[string]interface{}

func (d ValidatedData) String(name string) (string, bool) {
	v, ok := d[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// UserStore persists users created or updated by serializers.
type UserStore interface {
	CreateUser(user domain.User) (domain.User, error)
	UpdateUser(user domain.User) error
}

// ModelSerializer maps user model fields according to Meta.
type ModelSerializer struct {
	Meta     Meta
	users    domain.UsersRepository
	validate *validator.Validate
}

func newModelSerializer(meta Meta, users domain.UsersRepository) ModelSerializer {
	return ModelSerializer{Meta: meta, users: users, validate: validator.New()}
}

func (s *ModelSerializer) Fields() domain.FieldNames {
	return s.Meta.Fields.Clone()
}

func (s *ModelSerializer) writableFields() domain.FieldNames {
	return s.Meta.Fields.Filter(func(f string) bool {
		return !s.Meta.ReadOnlyFields.Has(f)
	})
}

// Represent returns representation of all readable fields.
func (s *ModelSerializer) Represent(u domain.User) Representation {
	r := make(Representation, 0, len(s.Meta.Fields))
	for _, f := range s.Meta.Fields {
		if s.Meta.WriteOnlyFields.Has(f) {
			continue
		}
		v, _ := u.FieldValue(f)
		r = append(r, Field{Name: f, Value: v})
	}
	return r
}

// validateField reports invalid input into errs. Returned error is set only
// when the check itself failed.
func (s *ModelSerializer) validateField(name string, value interface{}, instance *domain.User, errs domain.ValidationError) (interface{}, bool, error) {
	switch name {
	case "is_staff", "is_active", "is_superuser":
		b, ok := value.(bool)
		if !ok {
			errs.Add(name, MsgNotBool)
			return nil, false, nil
		}
		return b, true, nil
	}
	str, ok := value.(string)
	if !ok {
		errs.Add(name, MsgNotString)
		return nil, false, nil
	}
	switch name {
	case "password":
		// passwords are kept untouched
		return str, true, nil
	case "username":
		str = strings.TrimSpace(str)
		if !domain.ValidateUsername(str) {
			if str == "" {
				errs.Add(name, MsgBlank)
			} else {
				errs.Add(name, MsgInvalidName)
			}
			return nil, false, nil
		}
		if instance == nil || instance.Username != str {
			exists, err := s.users.UsernameExists(str)
			if err != nil {
				return nil, false, fmt.Errorf("checking username: %w", err)
			}
			if exists {
				errs.Add(name, MsgUsernameTaken)
				return nil, false, nil
			}
		}
	case "email":
		str = domain.NormalizeEmail(str)
		if str == "" {
			if s.Meta.RequiredFields.Has(name) {
				errs.Add(name, MsgBlank)
				return nil, false, nil
			}
			return str, true, nil
		}
		if err := s.validate.Var(str, "email"); err != nil || !domain.ValidateEmail(str) {
			errs.Add(name, MsgInvalidEmail)
			return nil, false, nil
		}
		if instance == nil || instance.Email != str {
			exists, err := s.users.EmailExists(str)
			if err != nil {
				return nil, false, fmt.Errorf("checking email: %w", err)
			}
			if exists {
				errs.Add(name, MsgEmailTaken)
				return nil, false, nil
			}
		}
	case "first_name", "last_name":
		str = strings.TrimSpace(str)
		if len([]rune(str)) > maxNameLength {
			errs.Add(name, fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
			return nil, false, nil
		}
	}
	return str, true, nil
}

// Validate checks input data. Unknown and read-only fields are ignored.
// Required fields are enforced unless partial is set.
func (s *ModelSerializer) Validate(data map[string]interface{}, instance *domain.User, partial bool) (ValidatedData, error) {
	errs := domain.ValidationError{}
	validated := ValidatedData{}
	for _, f := range s.writableFields() {
		value, ok := data[f]
		if !ok || value == nil {
			if !partial && s.Meta.RequiredFields.Has(f) {
				errs.Add(f, MsgRequired)
			}
			continue
		}
		if str, isStr := value.(string); isStr && str == "" && s.Meta.RequiredFields.Has(f) {
			errs.Add(f, MsgBlank)
			continue
		}
		v, ok, err := s.validateField(f, value, instance, errs)
		if err != nil {
			return nil, err
		}
		if ok {
			validated[f] = v
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return validated, nil
}

func applyValues(u *domain.User, data ValidatedData) {
	for name, value := range data {
		switch name {
		case "email":
			u.Email = value.(string)
		case "username":
			u.Username = value.(string)
		case "first_name":
			u.FirstName = value.(string)
		case "last_name":
			u.LastName = value.(string)
		case "is_staff":
			u.IsStaff = value.(bool)
		case "is_active":
			u.IsActive = value.(bool)
		case "is_superuser":
			u.IsSuperuser = value.(bool)
		}
	}
}
