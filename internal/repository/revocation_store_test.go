package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRevocationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisRevocationStore(client)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, time.Hour, mr.TTL(revokedKeyPrefix+"jti-1"))

	mr.FastForward(time.Hour)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-2", 0))
	assert.False(t, mr.Exists(revokedKeyPrefix+"jti-2"))
}

func TestRedisRevocationStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisRevocationStore(client).IsRevoked(context.Background(), "jti-1")
	require.Error(t, err)
}

func TestMemoryRevocationStore(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryRevocationStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "a", time.Minute))
	require.NoError(t, store.Revoke(ctx, "b", time.Hour))
	require.NoError(t, store.Revoke(ctx, "c", -time.Second))

	for id, want := range map[string]bool{"a": true, "b": true, "c": false, "d": false} {
		got, err := store.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}

	now = now.Add(time.Minute)
	got, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got)

	now = now.Add(time.Hour)
	pruned, err := store.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	assert.Empty(t, store.expires)
}

func TestRevokedTokenRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := NewRevokedTokenRepository(mock)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO revoked_tokens`).
		WithArgs("jti-1", now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("jti-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM revoked_tokens`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, repo.Revoke(ctx, "jti-1", time.Hour))
	require.NoError(t, repo.Revoke(ctx, "jti-expired", 0))

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	pruned, err := repo.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)

	assert.NoError(t, mock.ExpectationsWereMet())
}
