package admin

import (
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
)

const AdditionalInfo = "Additional Info"

var fieldLabels = map[string]string{
	"id":           "ID",
	"email":        "email address",
	"username":     "username",
	"password":     "password",
	"first_name":   "first name",
	"last_name":    "last name",
	"is_staff":     "staff status",
	"is_active":    "active",
	"is_superuser": "superuser status",
	"date_joined":  "date joined",
	"last_login":   "last login",
	"password1":    "password",
	"password2":    "password confirmation",
}

func FieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return strings.ReplaceAll(name, "_", " ")
}

// UserModel is the user model as seen by the admin site.
var UserModel = Model{
	Name:          "user",
	Fields:        domain.UserFields,
	AddFormFields: domain.FieldNames{"password1", "password2"},
}

// BaseUserAdmin holds default admin options for user models.
type BaseUserAdmin struct{}

func (BaseUserAdmin) ListDisplay() domain.FieldNames {
	return domain.FieldNames{"username", "email", "first_name", "last_name", "is_staff"}
}

func (BaseUserAdmin) ListFilter() domain.FieldNames {
	return domain.FieldNames{"is_staff", "is_superuser", "is_active"}
}

func (BaseUserAdmin) SearchFields() domain.FieldNames {
	return domain.FieldNames{"username", "first_name", "last_name", "email"}
}

func (BaseUserAdmin) Ordering() domain.FieldNames {
	return domain.FieldNames{"username"}
}

func (BaseUserAdmin) ReadonlyFields() domain.FieldNames {
	return domain.FieldNames{"last_login", "date_joined"}
}

func (BaseUserAdmin) ListPerPage() int {
	return 100
}

func (BaseUserAdmin) Fieldsets() Fieldsets {
	return Fieldsets{
		{Name: "", Fields: domain.FieldNames{"username", "password"}},
		{Name: "Personal info", Fields: domain.FieldNames{"first_name", "last_name", "email"}},
		{Name: "Permissions", Fields: domain.FieldNames{"is_active", "is_staff", "is_superuser"}},
		{Name: "Important dates", Fields: domain.FieldNames{"last_login", "date_joined"}},
	}
}

func (BaseUserAdmin) AddFieldsets() Fieldsets {
	return Fieldsets{
		{Name: "", Classes: []string{"wide"}, Fields: domain.FieldNames{"username", "password1", "password2"}},
	}
}

// UserAdmin is the admin descriptor of the accounts user model.
type UserAdmin struct {
	BaseUserAdmin
}

func (UserAdmin) ListDisplay() domain.FieldNames {
	return domain.FieldNames{"email", "username", "is_staff", "is_active"}
}

func (a UserAdmin) Fieldsets() Fieldsets {
	return a.BaseUserAdmin.Fieldsets().Extend(
		Fieldset{Name: AdditionalInfo, Fields: domain.FieldNames{}},
	)
}

func (a UserAdmin) AddFieldsets() Fieldsets {
	return a.BaseUserAdmin.AddFieldsets().Extend(
		Fieldset{Name: AdditionalInfo, Fields: domain.FieldNames{}},
	)
}

// RegisterUserAdmin registers user admin in the given site.
func RegisterUserAdmin(site *Site) error {
	return site.Register(UserModel, UserAdmin{})
}
