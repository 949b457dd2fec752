package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepository struct {
	*mock.UsersRepository
	loads int32
}

func (r *countingRepository) GetByID(id string) (domain.User, error) {
	atomic.AddInt32(&r.loads, 1)
	time.Sleep(10 * time.Millisecond)
	return r.UsersRepository.GetByID(id)
}

func TestUsersRepositoryCache(t *testing.T) {
	u, err := domain.NewUser("john", "john@example.com", "", "", "")
	require.NoError(t, err)
	base := &countingRepository{UsersRepository: mock.NewUsersRepository(u)}
	repo := NewUsersRepository(base, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cached, err := repo.GetByID(u.ID)
			assert.NoError(t, err)
			assert.Equal(t, "john", cached.Username)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&base.loads))

	u.FirstName = "John"
	require.NoError(t, repo.Update(u))
	cached, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "John", cached.FirstName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&base.loads))

	require.NoError(t, repo.Delete(u.ID))
	_, err = repo.GetByID(u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// slowRepository holds loaded user until released.
type slowRepository struct {
	*mock.UsersRepository
	loaded  chan struct{}
	release chan struct{}
}

func (r *slowRepository) GetByID(id string) (domain.User, error) {
	u, err := r.UsersRepository.GetByID(id)
	r.loaded <- struct{}{}
	<-r.release
	return u, err
}

func TestUsersRepositoryDiscardsStaleLoad(t *testing.T) {
	u, err := domain.NewUser("john", "john@example.com", "", "", "")
	require.NoError(t, err)
	base := &slowRepository{
		UsersRepository: mock.NewUsersRepository(u),
		loaded:          make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
	repo := NewUsersRepository(base, time.Minute)

	done := make(chan domain.User)
	go func() {
		stale, err := repo.GetByID(u.ID)
		assert.NoError(t, err)
		done <- stale
	}()
	<-base.loaded

	u.IsActive = false
	require.NoError(t, repo.Update(u))
	close(base.release)
	stale := <-done
	assert.True(t, stale.IsActive)

	cached, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	assert.False(t, cached.IsActive)
}
