package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleSession = Session{
	Token: "tok",
	User:  User{ID: "u1", Name: "Ada", Email: "ada@x.com", Role: "student"},
}

func exerciseStore(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(ctx, sampleSession))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSession, got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, store.Clear(ctx))
}

func TestMemorySessionStore(t *testing.T) {
	exerciseStore(t, NewMemorySessionStore())
}

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	exerciseStore(t, NewFileSessionStore(path))
}

func TestFileSessionStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := NewFileSessionStore(path)
	require.NoError(t, store.Set(context.Background(), sampleSession))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSessionStoreClearsCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileSessionStore(path).Get(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSessionStoreRejectsIncompleteSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"t","user":{}}`), 0o600))

	_, err := NewFileSessionStore(path).Get(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb, "", ttl), mr
}

func TestRedisSessionStore(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	exerciseStore(t, store)
}

func TestRedisSessionStoreExpires(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	require.NoError(t, store.Set(context.Background(), sampleSession))
	assert.Equal(t, time.Hour, mr.TTL("scholaris:auth"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisSessionStoreClearsCorruptData(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set("scholaris:auth", "garbage"))

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	assert.False(t, mr.Exists("scholaris:auth"))
}
