package mock

import (
	"context"
	"sync"
	"time"
)

// TokenBlacklist is an in-memory blacklist of token ids.
type TokenBlacklist struct {
	sync.Mutex
	items map[string]time.Time
}

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{items: make(map[string]time.Time)}
}

func (b *TokenBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	b.Lock()
	defer b.Unlock()
	if exp, ok := b.items[jti]; ok && time.Now().Before(exp) {
		return false, nil
	}
	b.items[jti] = time.Now().Add(ttl)
	return true, nil
}

func (b *TokenBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	b.Lock()
	defer b.Unlock()
	exp, ok := b.items[jti]
	return ok && time.Now().Before(exp), nil
}
