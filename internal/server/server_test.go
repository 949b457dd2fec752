package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gisquick/accounts-server/internal/admin"
	"github.com/gisquick/accounts-server/internal/application"
	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/infrastructure/security"
	"github.com/gisquick/accounts-server/internal/mock"
	"github.com/gisquick/accounts-server/internal/server/auth"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type resetEmails struct {
	uid, token string
}

func (r *resetEmails) SendActivationEmail(user domain.User, uid, token string) error { return nil }
func (r *resetEmails) SendConfirmationEmail(user domain.User) error                  { return nil }
func (r *resetEmails) SendPasswordChangedEmail(user domain.User) error               { return nil }
func (r *resetEmails) SendPasswordResetEmail(user domain.User, uid, token string) error {
	r.uid, r.token = uid, token
	return nil
}

type testEnv struct {
	server *Server
	auth   *auth.AuthService
	repo   *mock.UsersRepository
	emails *resetEmails
	staff  domain.User
	user   domain.User
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	staff, err := domain.NewUser("admin", "admin@example.com", "", "", "Adm1nPassword")
	require.NoError(t, err)
	staff.IsStaff = true
	user, err := domain.NewUser("john", "john@example.com", "John", "Doe", "Str0ngPassw")
	require.NoError(t, err)

	repo := mock.NewUsersRepository(staff, user)
	emails := &resetEmails{}
	accounts := application.NewAccountsService(emails, repo, security.NewTokenGenerator("secret", "accounts", time.Hour), false)
	as := auth.NewAuthService(zap.NewNop().Sugar(), repo, security.NewJWTManager("secret", 5*time.Minute, time.Hour), mock.NewTokenBlacklist(), false)

	site := admin.NewSite()
	require.NoError(t, admin.RegisterUserAdmin(site))
	return &testEnv{
		server: NewServer(zap.NewNop().Sugar(), cfg, as, accounts, site),
		auth:   as,
		repo:   repo,
		emails: emails,
		staff:  staff,
		user:   user,
	}
}

func (e *testEnv) token(t *testing.T, u domain.User) string {
	t.Helper()
	pair, err := e.auth.IssueTokens(u)
	require.NoError(t, err)
	return pair.Access
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, jsonAPI.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data := make(map[string]interface{})
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

func TestTokenCreate(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodPost, "/auth/jwt/create/", "", map[string]string{"username": "john", "password": "Str0ngPassw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tokens := decode(t, rec)
	assert.NotEmpty(t, tokens["access"])
	assert.NotEmpty(t, tokens["refresh"])

	rec = env.request(t, http.MethodPost, "/auth/jwt/verify", "", map[string]interface{}{"token": tokens["access"]})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/auth/jwt/refresh", "", map[string]interface{}{"refresh": tokens["refresh"]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["access"])

	rec = env.request(t, http.MethodPost, "/auth/jwt/create", "", map[string]string{"username": "john", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), decode(t, rec)["detail"])

	rec = env.request(t, http.MethodPost, "/auth/jwt/create", "", map[string]string{"username": "john"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"password": ["This field is required."]}`, rec.Body.String())

	rec = env.request(t, http.MethodPost, "/auth/jwt/refresh", "", map[string]interface{}{"refresh": tokens["access"]})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodGet, "/auth/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgNotAuthenticated, decode(t, rec)["detail"])

	rec = env.request(t, http.MethodGet, "/auth/users/me", "invalid", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/auth/users/me/", env.token(t, env.user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	expected := `{"id": "` + env.user.ID + `", "email": "john@example.com", "username": "john", "first_name": "John", "last_name": "Doe"}`
	assert.JSONEq(t, expected, rec.Body.String())
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, env.user)

	rec := env.request(t, http.MethodPatch, "/auth/users/me", token, map[string]string{"first_name": " Johnny ", "username": "changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "Johnny", data["first_name"])
	assert.Equal(t, "john", data["username"])

	rec = env.request(t, http.MethodPatch, "/auth/users/me", token, map[string]string{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "email")
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t, Config{SignupAPI: true})

	rec := env.request(t, http.MethodPost, "/auth/users", "", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "Wonderland42",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "alice@example.com", data["email"])
	assert.NotEmpty(t, data["id"])
	assert.NotContains(t, data, "password")

	rec = env.request(t, http.MethodPost, "/auth/users", "", map[string]string{
		"username": "alice",
		"email":    "alice2@example.com",
		"password": "Wonderland42",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"username": ["A user with that username already exists."]}`, rec.Body.String())

	rec = env.request(t, http.MethodPost, "/auth/users", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "12345678",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "password")
}

func TestCreateUserSignupDisabled(t *testing.T) {
	env := newTestEnv(t, Config{})
	body := map[string]string{"username": "alice", "email": "alice@example.com", "password": "Wonderland42"}

	rec := env.request(t, http.MethodPost, "/auth/users", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/auth/users", env.token(t, env.user), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPost, "/auth/users", env.token(t, env.staff), body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUsersAccess(t *testing.T) {
	env := newTestEnv(t, Config{})
	userToken := env.token(t, env.user)

	rec := env.request(t, http.MethodGet, "/auth/users", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]interface{}
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "john", users[0]["username"])

	rec = env.request(t, http.MethodGet, "/auth/users", env.token(t, env.staff), nil)
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	rec = env.request(t, http.MethodGet, "/auth/users/"+env.staff.ID, userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, decode(t, rec)["detail"])

	rec = env.request(t, http.MethodGet, "/auth/users/"+env.user.ID, env.token(t, env.staff), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetPasswordAndDeleteMe(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, env.user)

	rec := env.request(t, http.MethodPost, "/auth/users/set_password", token, map[string]string{
		"current_password": "wrong",
		"new_password":     "N3wPassword!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "current_password")

	rec = env.request(t, http.MethodPost, "/auth/users/set_password", token, map[string]string{
		"current_password": "Str0ngPassw",
		"new_password":     "N3wPassword!",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodDelete, "/auth/users/me", token, map[string]string{"current_password": "Str0ngPassw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodDelete, "/auth/users/me", token, map[string]string{"current_password": "N3wPassword!"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := env.repo.GetByID(env.user.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodPost, "/auth/users/reset_password", "", map[string]string{"email": "john@example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.NotEmpty(t, env.emails.token)

	rec = env.request(t, http.MethodPost, "/auth/users/reset_password_confirm", "", map[string]string{
		"uid":          env.emails.uid,
		"token":        "invalid",
		"new_password": "N3wPassword!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "token")

	rec = env.request(t, http.MethodPost, "/auth/users/reset_password_confirm", "", map[string]string{
		"uid":          env.emails.uid,
		"token":        env.emails.token,
		"new_password": "N3wPassword!",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodPost, "/auth/jwt/create", "", map[string]string{"username": "john", "password": "N3wPassword!"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAccess(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodGet, "/api/admin/users", env.token(t, env.user), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, msgPermissionDenied, decode(t, rec)["detail"])

	rec = env.request(t, http.MethodGet, "/api/admin/models", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminConfig(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, env.staff)

	rec := env.request(t, http.MethodGet, "/api/admin/models", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["user"]`, rec.Body.String())

	rec = env.request(t, http.MethodGet, "/api/admin/user/config", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var options admin.Options
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &options))
	assert.Equal(t, domain.FieldNames{"email", "username", "is_staff", "is_active"}, options.ListDisplay)
	assert.Equal(t, admin.AdditionalInfo, options.Fieldsets[len(options.Fieldsets)-1].Name)
	assert.Equal(t, admin.AdditionalInfo, options.AddFieldsets[len(options.AddFieldsets)-1].Name)

	rec = env.request(t, http.MethodGet, "/api/admin/group/config", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminChangelist(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, env.staff)

	rec := env.request(t, http.MethodGet, "/api/admin/users?is_staff=0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result admin.ChangelistResult
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Columns, 4)
	assert.Equal(t, "email", result.Columns[0].Name)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, env.user.ID, result.Rows[0].ID)

	rec = env.request(t, http.MethodGet, "/api/admin/users?o=password", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUserForms(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, env.staff)

	rec := env.request(t, http.MethodPost, "/api/admin/users", token, map[string]string{
		"username":  "carol",
		"password1": "Secret1234pw",
		"password2": "Secret1234px",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec), "password2")

	rec = env.request(t, http.MethodPost, "/api/admin/users", token, map[string]string{
		"username":  "carol",
		"password1": "Secret1234pw",
		"password2": "Secret1234pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var form ChangeFormData
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, "carol", form.Username)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = env.request(t, http.MethodPut, "/api/admin/users/"+form.ID, token, map[string]interface{}{
		"email":    "carol@example.com",
		"is_staff": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	carol, err := env.repo.GetByID(form.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", carol.Email)
	assert.True(t, carol.IsStaff)

	rec = env.request(t, http.MethodDelete, "/api/admin/users/"+form.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.request(t, http.MethodGet, "/api/admin/users/"+form.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAvailability(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodGet, "/auth/check?field=username&value=john", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available": false}`, rec.Body.String())

	rec = env.request(t, http.MethodGet, "/auth/check?field=email&value=new@example.com", "", nil)
	assert.JSONEq(t, `{"available": true}`, rec.Body.String())

	rec = env.request(t, http.MethodGet, "/auth/check?field=password&value=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenEndpointsIgnoreStaleHeader(t *testing.T) {
	env := newTestEnv(t, Config{})
	expired, _, err := security.NewJWTManager("secret", -time.Minute, time.Hour).NewToken(security.AccessToken, env.user.ID)
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, "/auth/users/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/auth/jwt/create/", expired, map[string]string{"username": "john", "password": "Str0ngPassw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tokens := decode(t, rec)

	rec = env.request(t, http.MethodPost, "/auth/jwt/refresh/", expired, map[string]interface{}{"refresh": tokens["refresh"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["access"])

	rec = env.request(t, http.MethodPost, "/auth/jwt/verify", expired, map[string]interface{}{"token": tokens["access"]})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUserWithoutEmail(t *testing.T) {
	env := newTestEnv(t, Config{SignupAPI: true})
	body := map[string]string{"username": "noemail", "password": "Zq8!unique-pass"}

	rec := env.request(t, http.MethodPost, "/auth/users/", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "", decode(t, rec)["email"])

	// activation link can not be delivered without email
	accounts := application.NewAccountsService(env.emails, env.repo, security.NewTokenGenerator("secret", "accounts", time.Hour), true)
	site := admin.NewSite()
	require.NoError(t, admin.RegisterUserAdmin(site))
	env.server = NewServer(zap.NewNop().Sugar(), Config{SignupAPI: true}, env.auth, accounts, site)

	body["username"] = "noemail2"
	rec = env.request(t, http.MethodPost, "/auth/users/", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"email": ["This field is required."]}`, rec.Body.String())
}

func TestTooLongPassword(t *testing.T) {
	env := newTestEnv(t, Config{SignupAPI: true})
	long := strings.Repeat("Zq8!", 20)

	rec := env.request(t, http.MethodPost, "/auth/users/", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec), "password")

	rec = env.request(t, http.MethodPost, "/auth/users/set_password", env.token(t, env.user), map[string]string{
		"current_password": "Str0ngPassw",
		"new_password":     long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec), "new_password")

	rec = env.request(t, http.MethodPost, "/auth/users/reset_password", "", map[string]string{"email": "john@example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.request(t, http.MethodPost, "/auth/users/reset_password_confirm", "", map[string]string{
		"uid":          env.emails.uid,
		"token":        env.emails.token,
		"new_password": long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec), "new_password")

	rec = env.request(t, http.MethodPost, "/api/admin/users", env.token(t, env.staff), map[string]string{
		"username":  "carol",
		"password1": long,
		"password2": long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec), "password2")
}
