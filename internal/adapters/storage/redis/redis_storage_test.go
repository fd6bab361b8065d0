package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

func setupTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	storage, err := New(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	return storage, mr
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := New(Config{})
	assert.EqualError(t, err, "redis address is required")
}

func TestPolicyLifecycle(t *testing.T) {
	storage, mr := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.FindPolicy(ctx, "jokes")
	assert.True(t, domain.IsPolicyNotFound(err))

	created, err := storage.UpsertPolicy(ctx, domain.Policy{
		ResourceID: "jokes",
		Path:       "/jokes/random",
		MaxCount:   3,
		Window:     domain.DefaultWindow,
		Role:       domain.RoleAPIUser,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, mr.Exists("joker:policy:jokes"))

	found, err := storage.FindPolicy(ctx, "jokes")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, 3, found.MaxCount)
	assert.Equal(t, domain.DefaultWindow, found.Window)
	assert.Equal(t, "/jokes/random", found.Path)

	updated, err := storage.UpdatePolicy(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.MaxCount)

	_, err = storage.UpdatePolicy(ctx, "unknown", 1)
	assert.ErrorIs(t, err, domain.ErrUpdateFailed)

	again, err := storage.UpsertPolicy(ctx, domain.Policy{ResourceID: "jokes", MaxCount: 5, Window: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = storage.UpsertPolicy(ctx, domain.Policy{ResourceID: "alpha", MaxCount: 1, Window: time.Hour})
	require.NoError(t, err)

	policies, err := storage.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "alpha", policies[0].ResourceID)
	assert.Equal(t, 5, policies[1].MaxCount)
}

func TestUpdatePolicy_DeletedPolicyFails(t *testing.T) {
	storage, mr := setupTestStorage(t)
	ctx := context.Background()

	created, err := storage.UpsertPolicy(ctx, domain.Policy{ResourceID: "jokes", MaxCount: 3, Window: time.Hour})
	require.NoError(t, err)

	mr.Del("joker:policy:jokes")

	_, err = storage.UpdatePolicy(ctx, created.ID, 10)
	assert.ErrorIs(t, err, domain.ErrUpdateFailed)
	assert.False(t, mr.Exists("joker:policy:jokes"), "a failed update must not recreate the policy")
}

func TestRequestLogWindow(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	windowStart := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	entries := []domain.LogEntry{
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart.Add(-time.Microsecond)},
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart},
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart},
		{SubjectID: "subjectB", ResourceID: "jokes", Timestamp: windowStart.Add(time.Hour)},
		{SubjectID: "subjectA", ResourceID: "users", Timestamp: windowStart.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, storage.Append(ctx, e))
	}

	count, err := storage.CountSince(ctx, "subjectA", "jokes", windowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "identical timestamps are distinct entries")

	latest, err := storage.LatestResource(ctx, "subjectA")
	require.NoError(t, err)
	assert.Equal(t, "users", latest)

	latest, err = storage.LatestResource(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestStoreFaultsAreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	storage := NewWithClient(client, "")
	defer storage.Close()

	mr.Close()

	_, err = storage.CountSince(context.Background(), "subjectA", "jokes", time.Now())
	assert.True(t, domain.IsStoreUnavailable(err))

	_, err = storage.FindPolicy(context.Background(), "jokes")
	assert.True(t, domain.IsStoreUnavailable(err))
}
