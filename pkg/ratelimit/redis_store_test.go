package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altura-labs/secgate/pkg/ratelimit"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_FirstCheckArmsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	clock := newFakeClock()
	store := ratelimit.NewRedisStore(db, &ratelimit.RedisStoreOpts{TimeProvider: clock.Now})
	cfg := ratelimit.Config{Requests: 5, WindowMs: 60_000}

	mock.ExpectIncr("ratelimit:user:42:api-call").SetVal(1)
	mock.ExpectPExpire("ratelimit:user:42:api-call", time.Minute).SetVal(true)

	result, err := store.Check(context.Background(), "user:42:api-call", cfg)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 4, result.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), result.ResetTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SubsequentChecksReadTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	clock := newFakeClock()
	store := ratelimit.NewRedisStore(db, &ratelimit.RedisStoreOpts{TimeProvider: clock.Now})
	cfg := ratelimit.Config{Requests: 5, WindowMs: 60_000}

	mock.ExpectIncr("ratelimit:k").SetVal(3)
	mock.ExpectPTTL("ratelimit:k").SetVal(30 * time.Second)

	result, err := store.Check(context.Background(), "k", cfg)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
	assert.Equal(t, clock.Now().Add(30*time.Second).UnixMilli(), result.ResetTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DeniesPastLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db, nil)
	cfg := ratelimit.Config{Requests: 5, WindowMs: 60_000}

	mock.ExpectIncr("ratelimit:k").SetVal(6)
	mock.ExpectPTTL("ratelimit:k").SetVal(10 * time.Second)

	result, err := store.Check(context.Background(), "k", cfg)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ReArmsMissingTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db, nil)
	cfg := ratelimit.Config{Requests: 5, WindowMs: 60_000}

	mock.ExpectIncr("ratelimit:k").SetVal(2)
	mock.ExpectPTTL("ratelimit:k").SetVal(-1)
	mock.ExpectPExpire("ratelimit:k", time.Minute).SetVal(true)

	result, err := store.Check(context.Background(), "k", cfg)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PropagatesBackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db, nil)
	cfg := ratelimit.Config{Requests: 5, WindowMs: 60_000}

	mock.ExpectIncr("ratelimit:k").SetErr(errors.New("connection refused"))

	_, err := store.Check(context.Background(), "k", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit counter")
}
