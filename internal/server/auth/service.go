package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/infrastructure/security"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("No active account found with the given credentials")
	ErrInvalidToken       = errors.New("Given token not valid for any token type")
	ErrBlacklistedToken   = errors.New("Token is blacklisted")
	ErrUserInactive       = errors.New("User is inactive")
)

var authHeaderTypes = []string{"Bearer", "JWT"}

const contextUserKey = "user"

// TokenBlacklist stores ids of revoked tokens. Add reports false when the id
// was already present, so only one caller can revoke a token.
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
}

type RedisTokenBlacklist struct {
	rdb *redis.Client
}

func NewRedisTokenBlacklist(rdb *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{rdb: rdb}
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("token_blacklist:%s", jti)
}

func (b *RedisTokenBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	added, err := b.rdb.SetNX(ctx, blacklistKey(jti), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis blacklist token: %v", err)
	}
	return added, nil
}

func (b *RedisTokenBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check blacklisted token: %v", err)
	}
	return n > 0, nil
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type AuthService struct {
	logger        *zap.SugaredLogger
	users         domain.UsersRepository
	tokens        *security.JWTManager
	blacklist     TokenBlacklist
	rotateRefresh bool
}

func NewAuthService(logger *zap.SugaredLogger, users domain.UsersRepository, tokens *security.JWTManager, blacklist TokenBlacklist, rotateRefresh bool) *AuthService {
	return &AuthService{
		logger:        logger,
		users:         users,
		tokens:        tokens,
		blacklist:     blacklist,
		rotateRefresh: rotateRefresh,
	}
}

func (s *AuthService) Authenticate(username, password string) (domain.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("authenticate %s: %w", username, err)
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) newPair(userID string) (TokenPair, error) {
	access, _, err := s.tokens.NewToken(security.AccessToken, userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.tokens.NewToken(security.RefreshToken, userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueTokens issues new token pair and records login time.
func (s *AuthService) IssueTokens(user domain.User) (TokenPair, error) {
	pair, err := s.newPair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.users.Update(user); err != nil {
		// not a critical issue, just log error and continue
		s.logger.Warnw("update user last_login", "user", user.Username, zap.Error(err))
	}
	return pair, nil
}

func (s *AuthService) parseRefresh(ctx context.Context, token string) (security.Claims, error) {
	claims, err := s.tokens.Parse(token, security.RefreshToken)
	if err != nil {
		return claims, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	blacklisted, err := s.blacklist.Contains(ctx, claims.Id)
	if err != nil {
		return claims, err
	}
	if blacklisted {
		return claims, ErrBlacklistedToken
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims security.Claims) error {
	added, err := s.blacklist.Add(ctx, claims.Id, claims.Remaining())
	if err != nil {
		return err
	}
	if !added {
		return ErrBlacklistedToken
	}
	return nil
}

// Refresh issues new access token. With rotation enabled, the refresh token
// is blacklisted and replaced by a new one.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (TokenPair, error) {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrUserInactive
	}
	if !s.rotateRefresh {
		access, _, err := s.tokens.NewToken(security.AccessToken, user.ID)
		if err != nil {
			return TokenPair{}, err
		}
		return TokenPair{Access: access}, nil
	}
	if err := s.revoke(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return s.newPair(user.ID)
}

// Verify checks validity of access or refresh token.
func (s *AuthService) Verify(ctx context.Context, token string) error {
	if _, err := s.tokens.Parse(token, security.AccessToken); err == nil {
		return nil
	}
	_, err := s.parseRefresh(ctx, token)
	return err
}

// Blacklist invalidates refresh token.
func (s *AuthService) Blacklist(ctx context.Context, refresh string) error {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	for _, t := range authHeaderTypes {
		if parts[0] == t {
			return parts[1], true
		}
	}
	return "", false
}

// GetUser returns user authenticated by request access token, or nil for
// anonymous requests.
func (s *AuthService) GetUser(c echo.Context) (*domain.User, error) {
	if u, saved := c.Get(contextUserKey).(*domain.User); saved {
		return u, nil
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, nil
	}
	token, ok := bearerToken(header)
	if !ok {
		return nil, nil
	}
	claims, err := s.tokens.Parse(token, security.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("auth: get token user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	c.Set(contextUserKey, &user)
	return &user, nil
}

// ForgetUser drops user cached in request context.
func (s *AuthService) ForgetUser(c echo.Context) {
	c.Set(contextUserKey, nil)
}
