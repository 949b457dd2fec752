package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var refTime = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

var (
	ErrTokenExpired = errors.New("Token expired")
	ErrTokenInvalid = errors.New("Invalid token")
)

// TokenGenerator creates one-time tokens for account activation and
// password reset links. Token is bound to the given claims, so it becomes
// invalid once any of them changes.
type TokenGenerator struct {
	key        string
	salt       string
	expiration time.Duration
	now        func() time.Time
}

func NewTokenGenerator(key, salt string, expiration time.Duration) *TokenGenerator {
	return &TokenGenerator{key: key, salt: salt, expiration: expiration, now: time.Now}
}

func (t *TokenGenerator) timestamp() int64 {
	return t.now().UTC().Unix() - refTime
}

func (t *TokenGenerator) tokenWithTimestamp(claims string, timestamp int64) (string, error) {
	if timestamp < 0 {
		return "", fmt.Errorf("negative token timestamp")
	}
	h := hmac.New(sha256.New, []byte(t.key))
	h.Write([]byte(t.salt))
	h.Write([]byte(fmt.Sprintf("%s%d", claims, timestamp)))
	return fmt.Sprintf("%s-%x", strconv.FormatInt(timestamp, 36), h.Sum(nil)), nil
}

func (t *TokenGenerator) GenerateToken(claims string) (string, error) {
	return t.tokenWithTimestamp(claims, t.timestamp())
}

func (t *TokenGenerator) CheckToken(token, claims string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return ErrTokenInvalid
	}
	timestamp, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	expected, err := t.tokenWithTimestamp(claims, timestamp)
	if err != nil {
		return ErrTokenInvalid
	}
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return ErrTokenInvalid
	}
	age := time.Duration(t.timestamp()-timestamp) * time.Second
	if age > t.expiration {
		return ErrTokenExpired
	}
	return nil
}
