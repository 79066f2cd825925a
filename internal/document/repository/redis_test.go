package repository

import (
	"context"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRepoContract(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepo(client, "test:doc:")
	defer repo.Close()

	runContract(t, repo)
}

func TestRedisRepoOnlyTouchesItsPrefix(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Set("other:key", "keep me"))
	require.NoError(t, m.Set("test:doc:not-a-key", "ignored"))

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepo(client, "test:doc:")
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, 1, []byte("one")))
	require.True(t, m.Exists("test:doc:00000000000000000001"))

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, keys)

	n, err := repo.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, err := m.Get("other:key")
	require.NoError(t, err)
	require.Equal(t, "keep me", v)
	require.True(t, m.Exists("test:doc:not-a-key"))
}

func TestRedisRepoManyKeys(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepo(client, "")
	defer repo.Close()

	ctx := context.Background()
	const total = scanBatch*2 + 17
	for i := uint64(1); i <= total; i++ {
		require.NoError(t, repo.Put(ctx, i, []byte("x")))
	}
	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, total)
	require.Equal(t, uint64(1), keys[0])
	require.Equal(t, uint64(total), keys[len(keys)-1])

	n, err := repo.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, total, n)
}
