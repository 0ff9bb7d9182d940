package canteen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/mealpoint/internal/shared"
)

type memoryRepo struct {
	canteens map[int64]Canteen
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{canteens: make(map[int64]Canteen)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Canteen, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Save(ctx context.Context, c Canteen) (Canteen, error) {
	m.canteens[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Create(ctx context.Context, c Canteen) (Canteen, error) {
	m.nextID++
	c.ID = m.nextID
	m.canteens[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Canteen, error) {
	c, ok := m.canteens[id]
	if !ok {
		return Canteen{}, fmt.Errorf("canteen %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (m *memoryRepo) List(ctx context.Context) ([]Canteen, error) {
	var out []Canteen
	for _, c := range m.canteens {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) ListLocked(ctx context.Context) ([]Canteen, error) {
	var out []Canteen
	for _, c := range m.canteens {
		if c.IsLocked {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) UnlockExpired(ctx context.Context, cutoff, now time.Time) (int64, error) {
	var count int64
	for id, c := range m.canteens {
		if c.IsLocked && c.LockedAt != nil && c.LockedAt.Before(cutoff) {
			c.IsLocked = false
			c.LockedAt = nil
			c.LockedBy = ""
			c.LockReason = ""
			c.UpdatedAt = now
			m.canteens[id] = c
			count++
		}
	}
	return count, nil
}

func newTestService(repo *memoryRepo, at time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return at }
	return svc
}

func seedCanteen(t *testing.T, repo *memoryRepo) Canteen {
	t.Helper()
	c, err := repo.Create(context.Background(), Canteen{Name: "North Wing", IsActive: true})
	require.NoError(t, err)
	return c
}

func TestLockAndUnlock(t *testing.T) {
	repo := newMemoryRepo()
	at := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	svc := newTestService(repo, at)
	ctx := context.Background()
	c := seedCanteen(t, repo)

	locked, err := svc.Lock(ctx, c.ID, "admin", "month-end count")
	require.NoError(t, err)
	require.True(t, locked.IsLocked)
	require.Equal(t, "admin", locked.LockedBy)
	require.Equal(t, "month-end count", locked.LockReason)
	require.NotNil(t, locked.LockedAt)

	// second manual lock is rejected
	_, err = svc.Lock(ctx, c.ID, "admin", "again")
	require.ErrorIs(t, err, shared.ErrAlreadyLocked)

	unlocked, err := svc.Unlock(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, unlocked.IsLocked)
	require.Nil(t, unlocked.LockedAt)
	require.Empty(t, unlocked.LockedBy)
	require.Empty(t, unlocked.LockReason)

	_, err = svc.Unlock(ctx, c.ID)
	require.ErrorIs(t, err, shared.ErrNotLocked)
}

func TestLockRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, time.Now())
	c := seedCanteen(t, repo)

	_, err := svc.Lock(context.Background(), c.ID, "admin", "   ")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLockUnknownCanteen(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, time.Now())

	_, err := svc.Lock(context.Background(), 42, "admin", "reason")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVerificationLockMergesReason(t *testing.T) {
	repo := newMemoryRepo()
	at := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	svc := newTestService(repo, at)
	ctx := context.Background()
	c := seedCanteen(t, repo)

	locked, err := svc.VerificationLock(ctx, c.ID, "admin", "Sale verified by admin")
	require.NoError(t, err)
	require.Equal(t, "Sale verified by admin", locked.LockReason)

	// verification lock on an already locked canteen appends the new reason
	locked, err = svc.VerificationLock(ctx, c.ID, "root", "Sale verified by root")
	require.NoError(t, err)
	require.Equal(t, "Sale verified by admin | Sale verified by root", locked.LockReason)

	// same reason twice does not duplicate
	locked, err = svc.VerificationLock(ctx, c.ID, "root", "Sale verified by root")
	require.NoError(t, err)
	require.Equal(t, "Sale verified by admin | Sale verified by root", locked.LockReason)
}

func TestAutoUnlockSweep(t *testing.T) {
	repo := newMemoryRepo()
	today := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, today)
	ctx := context.Background()

	stale := seedCanteen(t, repo)
	fresh := seedCanteen(t, repo)
	open := seedCanteen(t, repo)

	yesterday := time.Date(2024, 3, 13, 20, 0, 0, 0, time.UTC)
	c := repo.canteens[stale.ID]
	c.IsLocked = true
	c.LockedAt = &yesterday
	c.LockReason = "Sale verified by admin"
	repo.canteens[stale.ID] = c

	thisMorning := time.Date(2024, 3, 14, 7, 0, 0, 0, time.UTC)
	c = repo.canteens[fresh.ID]
	c.IsLocked = true
	c.LockedAt = &thisMorning
	repo.canteens[fresh.ID] = c

	count, err := svc.AutoUnlock(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.False(t, repo.canteens[stale.ID].IsLocked)
	require.Empty(t, repo.canteens[stale.ID].LockReason)
	require.True(t, repo.canteens[fresh.ID].IsLocked, "locks placed today must survive")
	require.False(t, repo.canteens[open.ID].IsLocked)

	// idempotent
	count, err = svc.AutoUnlock(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
