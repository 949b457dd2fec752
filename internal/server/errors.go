package server

import (
	"errors"
	"net/http"

	"github.com/gisquick/accounts-server/internal/admin"
	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgServerError = "A server error occurred."

type ErrorDetail struct {
	Detail interface{} `json:"detail"`
}

func newValidationError(field, msg string) domain.ValidationError {
	return domain.ValidationError{field: {msg}}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var body interface{} = ErrorDetail{Detail: msgServerError}

	var verr domain.ValidationError
	var he *echo.HTTPError
	var perr *admin.InvalidParamError
	switch {
	case errors.As(err, &verr):
		code = http.StatusBadRequest
		body = verr
	case errors.As(err, &perr):
		code = http.StatusBadRequest
		body = ErrorDetail{Detail: perr.Error()}
	case errors.As(err, &he):
		code = he.Code
		body = ErrorDetail{Detail: he.Message}
		if code == http.StatusInternalServerError && he.Internal != nil {
			err = he.Internal
		}
	}
	if code == http.StatusInternalServerError {
		s.log.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		s.log.Errorw("writing error response", zap.Error(err))
	}
}
