package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(id, email, code string) *models.User {
	return &models.User{
		ID:           id,
		Name:         "user " + id,
		Email:        email,
		ReferralCode: code,
		Earnings:     decimal.NewFromInt(100),
		CreatedAt:    time.Now(),
	}
}

func TestMemoryCreateEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@example.com", "CODE1")))

	err := repo.Create(ctx, newUser("u2", "A@Example.com ", "CODE2"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	err = repo.Create(ctx, newUser("u3", "b@example.com", "CODE1"))
	assert.ErrorIs(t, err, ErrDuplicateReferralCode)

	found, err := repo.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)

	found, err = repo.FindByReferralCode(ctx, "CODE1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)

	found, err = repo.FindByReferralCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryGetMissing(t *testing.T) {
	_, err := NewMemoryRepository(0).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTransact(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@example.com", "CODE1")))

	t.Run("commits mutation", func(t *testing.T) {
		user, err := repo.Transact(ctx, "u1", func(u *models.User) error {
			u.Earnings = u.Earnings.Add(decimal.NewFromInt(50))
			return nil
		})
		require.NoError(t, err)
		assert.True(t, user.Earnings.Equal(decimal.NewFromInt(150)))

		stored, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, stored.Earnings.Equal(decimal.NewFromInt(150)))
	})

	t.Run("abort leaves record untouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.Transact(ctx, "u1", func(u *models.User) error {
			u.Earnings = decimal.Zero
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, stored.Earnings.Equal(decimal.NewFromInt(150)))
	})

	t.Run("no change returns current record", func(t *testing.T) {
		user, err := repo.Transact(ctx, "u1", func(u *models.User) error {
			u.FreeSpins = 99
			return ErrNoChange
		})
		require.NoError(t, err)
		assert.Equal(t, 0, user.FreeSpins)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.Transact(ctx, "nobody", func(u *models.User) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled before start", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.Transact(cctx, "u1", func(u *models.User) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryTransactRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(3)
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@example.com", "CODE1")))

	conflicts := 1
	repo.beforeCommit = func(id string) {
		if conflicts == 0 {
			return
		}
		conflicts--
		// a concurrent writer sneaks in between read and commit
		_, err := repo.swap(id, 1, mustEncode(t, newUser("u1", "a@example.com", "CODE1")))
		require.NoError(t, err)
	}

	calls := 0
	user, err := repo.Transact(ctx, "u1", func(u *models.User) error {
		calls++
		u.AdSpins++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, user.AdSpins)
}

func TestMemoryTransactGivesUp(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(2)
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@example.com", "CODE1")))

	repo.beforeCommit = func(id string) {
		rec, err := repo.load(id)
		require.NoError(t, err)
		_, err = repo.swap(id, rec.version, rec.doc)
		require.NoError(t, err)
	}

	_, err := repo.Transact(ctx, "u1", func(u *models.User) error {
		u.AdSpins++
		return nil
	})
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestMemoryConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(1000)
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@example.com", "CODE1")))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transact(ctx, "u1", func(u *models.User) error {
				u.AdSpins++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, workers, user.AdSpins)
}

func TestMemoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)

	first := newUser("u1", "a@example.com", "CODE1")
	second := newUser("u2", "b@example.com", "CODE2")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)

	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.ErrorIs(t, repo.Delete(ctx, "u1"), ErrNotFound)

	// email and code are free again
	require.NoError(t, repo.Create(ctx, newUser("u3", "a@example.com", "CODE1")))
}

func mustEncode(t *testing.T, u *models.User) []byte {
	t.Helper()
	doc, err := encodeUser(u)
	require.NoError(t, err)
	return doc
}
