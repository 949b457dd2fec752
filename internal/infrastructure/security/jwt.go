package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt"
)

const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

var ErrTokenType = errors.New("Token has wrong type")

// Claims of access and refresh tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	jwt.StandardClaims
}

// Remaining returns time until token expiration.
func (c Claims) Remaining() time.Duration {
	return time.Until(time.Unix(c.ExpiresAt, 0))
}

// JWTManager signs and parses HS256 tokens.
type JWTManager struct {
	key             []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
}

func NewJWTManager(key string, accessLifetime, refreshLifetime time.Duration) *JWTManager {
	return &JWTManager{
		key:             []byte(key),
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
	}
}

func (m *JWTManager) lifetime(tokenType string) time.Duration {
	if tokenType == RefreshToken {
		return m.refreshLifetime
	}
	return m.accessLifetime
}

func (m *JWTManager) NewToken(tokenType, userID string) (string, Claims, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", Claims{}, err
	}
	now := time.Now().UTC()
	claims := Claims{
		TokenType: tokenType,
		UserID:    userID,
		StandardClaims: jwt.StandardClaims{
			Id:        jti.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.lifetime(tokenType)).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return token, claims, nil
}

// Parse verifies token signature, expiration and type.
func (m *JWTManager) Parse(token, tokenType string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrTokenType
	}
	if claims.UserID == "" || claims.Id == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
