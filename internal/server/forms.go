package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/serializers"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return serializers.MsgRequired
	case "email":
		return serializers.MsgInvalidEmail
	}
	return "Invalid value."
}

// bindForm binds request body into form struct and validates it. Field
// errors are reported under json names of the fields.
func bindForm(c echo.Context, form interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, form); err != nil {
		return err
	}
	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		errs := domain.ValidationError{}
		for _, fe := range verrs {
			errs.Add(fe.Field(), fieldErrorMessage(fe))
		}
		return errs
	}
	return nil
}

// bindData reads request body as generic JSON object.
func bindData(c echo.Context) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if err := (&echo.DefaultBinder{}).BindBody(c, &data); err != nil {
		return nil, err
	}
	return data, nil
}
