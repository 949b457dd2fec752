package cache

import (
	"sync"
	"time"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// UsersRepository caches lookups by user id in front of another repository.
// Writes go straight to the wrapped repository and drop the cached entry.
// Loads which started before a write are not cached.
type UsersRepository struct {
	domain.UsersRepository
	cache      *ttlcache.Cache[string, domain.User]
	loaderLock singleflight.Group
	mu         sync.Mutex
	generation uint64
}

func NewUsersRepository(repo domain.UsersRepository, ttl time.Duration) *UsersRepository {
	cache := ttlcache.New[string, domain.User](
		ttlcache.WithTTL[string, domain.User](ttl),
		ttlcache.WithDisableTouchOnHit[string, domain.User](),
	)
	return &UsersRepository{UsersRepository: repo, cache: cache}
}

// Start runs expired items cleanup until Stop is called.
func (r *UsersRepository) Start() {
	go r.cache.Start()
}

func (r *UsersRepository) Stop() {
	r.cache.Stop()
}

func (r *UsersRepository) GetByID(id string) (domain.User, error) {
	if item := r.cache.Get(id); item != nil {
		return item.Value(), nil
	}
	res, err, _ := r.loaderLock.Do(id, func() (interface{}, error) {
		r.mu.Lock()
		gen := r.generation
		r.mu.Unlock()

		user, err := r.UsersRepository.GetByID(id)
		if err != nil {
			return user, err
		}
		r.mu.Lock()
		if gen == r.generation {
			r.cache.Set(id, user, ttlcache.DefaultTTL)
		}
		r.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return res.(domain.User), nil
}

// invalidate drops cached user and makes pending loads discard their result.
func (r *UsersRepository) invalidate(id string) {
	r.mu.Lock()
	r.generation++
	r.cache.Delete(id)
	r.mu.Unlock()
	r.loaderLock.Forget(id)
}

func (r *UsersRepository) Update(user domain.User) error {
	defer r.invalidate(user.ID)
	return r.UsersRepository.Update(user)
}

func (r *UsersRepository) Delete(id string) error {
	defer r.invalidate(id)
	return r.UsersRepository.Delete(id)
}
