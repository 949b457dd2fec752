package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gisquick/accounts-server/internal/admin"
	"github.com/gisquick/accounts-server/internal/application"
	"github.com/gisquick/accounts-server/internal/serializers"
	"github.com/gisquick/accounts-server/internal/server/auth"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Config struct {
	Debug          bool
	SiteURL        string
	Metrics        bool
	AllowedOrigins []string
	// Allow anonymous registration through POST /auth/users
	SignupAPI bool
}

type Server struct {
	Config          Config
	echo            *echo.Echo
	log             *zap.SugaredLogger
	auth            *auth.AuthService
	accountsService *application.AccountsService
	adminSite       *admin.Site
	userCreate      *serializers.UserCreateSerializer
	user            *serializers.UserSerializer
}

type JSONSerializer struct{}

// Serialize converts an interface into a json and writes it to the response.
// You can optionally use the indent parameter to produce pretty JSONs.
func (d JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize reads a JSON from a request body and converts it into an interface.
func (d JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", ute.Type, ute.Value, ute.Field, ute.Offset)).SetInternal(err)
	} else if se, ok := err.(*json.SyntaxError); ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Syntax error: offset=%v, error=%v", se.Offset, se.Error())).SetInternal(err)
	} else if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error").SetInternal(err)
	}
	return nil
}

func NewServer(log *zap.SugaredLogger, cfg Config, as *auth.AuthService, accounts *application.AccountsService, site *admin.Site) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug
	e.JSONSerializer = &JSONSerializer{}

	if cfg.Metrics {
		p := prometheus.NewPrometheus("accounts", nil)
		p.Use(e)
	}

	s := &Server{
		Config:          cfg,
		log:             log,
		echo:            e,
		auth:            as,
		accountsService: accounts,
		adminSite:       site,
		userCreate:      serializers.NewUserCreateSerializer(accounts.Repository),
		user:            serializers.NewUserSerializer(accounts.Repository),
	}
	e.HTTPErrorHandler = s.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	s.AddRoutes(e)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
