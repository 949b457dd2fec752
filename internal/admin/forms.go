package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgRequired         = "This field is required."
	msgPasswordMismatch = "The two password fields didn't match."
)

// PasswordSummary describes stored password without revealing its hash.
func PasswordSummary(u domain.User) string {
	if !u.HasUsablePassword() {
		return "No password set."
	}
	cost, err := bcrypt.Cost(u.Password)
	if err != nil {
		return "Invalid password format or unknown hashing algorithm."
	}
	return fmt.Sprintf("algorithm: bcrypt cost: %d", cost)
}

type FormField struct {
	Name     string      `json:"name"`
	Label    string      `json:"label"`
	Value    interface{} `json:"value"`
	ReadOnly bool        `json:"readonly"`
}

type FormFieldset struct {
	Name    string      `json:"name"`
	Classes []string    `json:"classes,omitempty"`
	Fields  []FormField `json:"fields"`
}

func editableFields(ma ModelAdmin) domain.FieldNames {
	readonly := ma.ReadonlyFields()
	return ma.Fieldsets().Fields().Filter(func(f string) bool {
		return f != "id" && f != "password" && !readonly.Has(f)
	})
}

// ChangeForm returns fieldsets of the edit form filled with user values.
func ChangeForm(ma ModelAdmin, u domain.User) []FormFieldset {
	editable := editableFields(ma)
	form := []FormFieldset{}
	for _, fs := range ma.Fieldsets() {
		fields := make([]FormField, len(fs.Fields))
		for i, f := range fs.Fields {
			fields[i] = FormField{
				Name:     f,
				Label:    FieldLabel(f),
				Value:    cellValue(u, f),
				ReadOnly: !editable.Has(f),
			}
		}
		form = append(form, FormFieldset{Name: fs.Name, Classes: fs.Classes, Fields: fields})
	}
	return form
}

func stringValue(data map[string]interface{}, field string, errs domain.ValidationError) (string, bool) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		errs.Add(field, "Not a valid string.")
		return "", false
	}
	return s, true
}

func boolValue(data map[string]interface{}, field string, errs domain.ValidationError) (bool, bool) {
	v, ok := data[field]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		if res, err := parseBool(b); err == nil {
			return res, true
		}
	}
	errs.Add(field, "Must be a valid boolean.")
	return false, false
}

// ApplyChange updates editable fields of the user from change form data.
func ApplyChange(ma ModelAdmin, u domain.User, data map[string]interface{}) (domain.User, error) {
	errs := domain.ValidationError{}
	for _, f := range editableFields(ma) {
		switch f {
		case "is_staff", "is_active", "is_superuser":
			b, ok := boolValue(data, f, errs)
			if !ok {
				continue
			}
			switch f {
			case "is_staff":
				u.IsStaff = b
			case "is_active":
				u.IsActive = b
			case "is_superuser":
				u.IsSuperuser = b
			}
		default:
			s, ok := stringValue(data, f, errs)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			switch f {
			case "username":
				if s == "" {
					errs.Add(f, msgRequired)
				} else if !domain.ValidateUsername(s) {
					errs.Add(f, "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
				}
				u.Username = s
			case "email":
				s = domain.NormalizeEmail(s)
				if s != "" && !domain.ValidateEmail(s) {
					errs.Add(f, "Enter a valid email address.")
				}
				u.Email = s
			case "first_name":
				u.FirstName = s
			case "last_name":
				u.LastName = s
			}
		}
	}
	return u, errs.Err()
}

// NewUserFromAddForm validates add form data and creates new user.
func NewUserFromAddForm(ma ModelAdmin, data map[string]interface{}) (domain.User, error) {
	errs := domain.ValidationError{}
	fields := ma.AddFieldsets().Fields()
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		s, _ := stringValue(data, f, errs)
		if !strings.HasPrefix(f, "password") {
			s = strings.TrimSpace(s)
		}
		values[f] = s
	}
	required := domain.FieldNames{"username", "password1", "password2"}
	for _, f := range required {
		if fields.Has(f) && values[f] == "" && !errs.Has(f) {
			errs.Add(f, msgRequired)
		}
	}
	if len(errs) > 0 {
		return domain.User{}, errs
	}
	if values["password1"] != values["password2"] {
		errs.Add("password2", msgPasswordMismatch)
		return domain.User{}, errs
	}
	candidate := domain.User{
		Username:  values["username"],
		Email:     values["email"],
		FirstName: values["first_name"],
		LastName:  values["last_name"],
	}
	for _, msg := range domain.ValidatePassword(values["password2"], candidate) {
		errs.Add("password2", msg)
	}
	if len(errs) > 0 {
		return domain.User{}, errs
	}
	u, err := domain.NewUser(values["username"], values["email"], values["first_name"], values["last_name"], values["password1"])
	if err != nil {
		field := "username"
		if errors.Is(err, domain.ErrInvalidEmail) {
			field = "email"
		}
		errs.Add(field, err.Error())
		return domain.User{}, errs
	}
	return u, nil
}
