package repository

import (
	"context"
	"testing"
	"time"

	"story-wizard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestMemoryRepo(ttl time.Duration) (*memorySessionRepository, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewMemorySessionRepository(ttl, zap.NewNop()).(*memorySessionRepository)
	r.now = clock.now
	return r, clock
}

func TestMemoryRepo_SaveGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestMemoryRepo(time.Hour)

	s := models.NewSession("s1", clock.t)
	s.State.UserInput = map[string]string{"age": "15"}
	require.NoError(t, repo.Save(ctx, s))

	s.State.UserInput["age"] = "99"

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "15", got.State.UserInput["age"])

	got.State.UserInput["age"] = "42"
	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "15", again.State.UserInput["age"])
}

func TestMemoryRepo_TTL(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestMemoryRepo(time.Minute)

	require.NoError(t, repo.Save(ctx, models.NewSession("s1", clock.t)))
	clock.t = clock.t.Add(30 * time.Second)
	_, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	clock.t = clock.t.Add(31 * time.Second)
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.Equal(t, 1, repo.Cleanup())
	assert.Equal(t, 0, repo.Cleanup())
}

func TestMemoryRepo_Delete(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestMemoryRepo(time.Hour)

	require.NoError(t, repo.Save(ctx, models.NewSession("s1", clock.t)))
	ok, err := repo.AcquireLock(ctx, "s1", "narrative", "tok", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	ok, err = repo.AcquireLock(ctx, "s1", "narrative", "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "delete releases the session's locks")

	assert.NoError(t, repo.Delete(ctx, "missing"))
}

func TestMemoryRepo_Locks(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestMemoryRepo(time.Hour)

	ok, err := repo.AcquireLock(ctx, "s1", "synthesis", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = repo.AcquireLock(ctx, "s1", "synthesis", "b", time.Minute)
	assert.False(t, ok)

	ok, _ = repo.AcquireLock(ctx, "s1", "narrative", "b", time.Minute)
	assert.True(t, ok, "locks are per form")

	require.NoError(t, repo.ReleaseLock(ctx, "s1", "synthesis", "b"))
	ok, _ = repo.AcquireLock(ctx, "s1", "synthesis", "c", time.Minute)
	assert.False(t, ok, "release with a foreign token is a no-op")

	require.NoError(t, repo.ReleaseLock(ctx, "s1", "synthesis", "a"))
	ok, _ = repo.AcquireLock(ctx, "s1", "synthesis", "c", time.Minute)
	assert.True(t, ok)

	clock.t = clock.t.Add(2 * time.Minute)
	ok, _ = repo.AcquireLock(ctx, "s1", "synthesis", "d", time.Minute)
	assert.True(t, ok, "expired lock can be taken over")
}
