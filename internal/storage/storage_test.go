package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gideontesting "github.com/2beens/gideon/pkg/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
		// badger keeps a few background workers around until the process exits
		goleak.IgnoreAnyFunction("github.com/dgraph-io/ristretto/v2.(*defaultPolicy[...]).processItems"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/ristretto/v2.(*Cache[...]).processItems"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/badger/v4/y.(*WaterMark).process"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/badger/v4.(*DB).monitorCache"),
		goleak.IgnoreAnyFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// runBackendContract checks the behaviour every backend must share.
func runBackendContract(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	val, err := backend.Get(ctx, "workout_history")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Nil(t, val)

	require.NoError(t, backend.Set(ctx, "workout_history", []byte(`[{"id":"1"}]`)))
	val, err = backend.Get(ctx, "workout_history")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(val))

	require.NoError(t, backend.Set(ctx, "workout_history", []byte(`[]`)))
	val, err = backend.Get(ctx, "workout_history")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(val))

	require.NoError(t, backend.Delete(ctx, "workout_history"))
	_, err = backend.Get(ctx, "workout_history")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// deleting a missing key is not an error
	require.NoError(t, backend.Delete(ctx, "workout_history"))
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	runBackendContract(t, backend)
	assert.Empty(t, backend.Keys())
}

func TestMemoryBackend_CopiesValues(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	value := []byte("abc")
	require.NoError(t, backend.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestBadgerBackend_InMemory(t *testing.T) {
	backend, err := OpenBadgerBackend(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, backend.Close())
	}()

	runBackendContract(t, backend)
}

func TestBadgerBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := OpenBadgerBackend(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, "profile_data", []byte(`{"height":"180"}`)))
	require.NoError(t, backend.Close())

	reopened, err := OpenBadgerBackend(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, reopened.Close())
	}()

	val, err := reopened.Get(ctx, "profile_data")
	require.NoError(t, err)
	assert.Equal(t, `{"height":"180"}`, string(val))
}

func TestBadgerBackend_PathRequired(t *testing.T) {
	backend, err := OpenBadgerBackend(BadgerConfig{})
	assert.Error(t, err)
	assert.Nil(t, backend)
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	backend := NewRedisBackend(rdb, "gideon::")
	defer func() {
		require.NoError(t, backend.Close())
	}()

	mock.ExpectGet("gideon::workout_history").RedisNil()
	val, err := backend.Get(ctx, "workout_history")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Nil(t, val)

	mock.ExpectSet("gideon::workout_history", `[{"id":"1"}]`, 0).SetVal("OK")
	require.NoError(t, backend.Set(ctx, "workout_history", []byte(`[{"id":"1"}]`)))

	mock.ExpectGet("gideon::workout_history").SetVal(`[{"id":"1"}]`)
	val, err = backend.Get(ctx, "workout_history")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(val))

	mock.ExpectDel("gideon::workout_history").SetVal(1)
	require.NoError(t, backend.Delete(ctx, "workout_history"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBackend_Integration(t *testing.T) {
	ctx, rdb := gideontesting.GetRedisClientAndCtx(t)

	prefix := "gideon-test::" + t.Name() + "::"
	runBackendContract(t, NewRedisBackend(rdb, prefix))

	exists, err := rdb.Exists(ctx, prefix+"workout_history").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisBackend_Errors(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	backend := NewRedisBackend(rdb, "")
	defer func() {
		require.NoError(t, backend.Close())
	}()

	mock.ExpectGet("nutrition_history").SetErr(errors.New("connection refused"))
	_, err := backend.Get(ctx, "nutrition_history")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), "connection refused")

	mock.ExpectSet("nutrition_history", "[]", 0).SetErr(errors.New("readonly"))
	err = backend.Set(ctx, "nutrition_history", []byte("[]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set nutrition_history")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	b, err := Open(OpenParams{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)
	assert.NoError(t, CloseBackend(b))

	_, err = Open(OpenParams{Kind: KindRedis})
	assert.Error(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	b, err = Open(OpenParams{Kind: KindRedis, RedisClient: rdb})
	require.NoError(t, err)
	assert.IsType(t, &RedisBackend{}, b)
	assert.NoError(t, CloseBackend(b))

	b, err = Open(OpenParams{Kind: KindBadger, Badger: BadgerConfig{InMemory: true}})
	require.NoError(t, err)
	assert.IsType(t, &BadgerBackend{}, b)
	assert.NoError(t, CloseBackend(b))

	_, err = Open(OpenParams{Kind: "sqlite"})
	assert.Error(t, err)
}
