package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"task-manager-api/internal/engine"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewRedisStorage_RequiresClient(t *testing.T) {
	_, err := NewRedisStorage(RedisStorageConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is required")
}

func TestRedisStorage_GetSetDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	s, err := NewRedisStorage(RedisStorageConfig{Client: client, Prefix: "limiter:"})
	require.NoError(t, err)

	val, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, s.Set("1.2.3.4", []byte("hits"), time.Minute))
	assert.True(t, mr.Exists("limiter:1.2.3.4"))
	assert.Equal(t, time.Minute, mr.TTL("limiter:1.2.3.4"))

	val, err = s.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("hits"), val)

	require.NoError(t, s.Delete("1.2.3.4"))
	assert.False(t, mr.Exists("limiter:1.2.3.4"))
}

func TestRedisStorage_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	s, err := NewRedisStorage(RedisStorageConfig{Client: client})
	require.NoError(t, err)

	require.NoError(t, s.Set("k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorage_ResetOnlyTouchesPrefix(t *testing.T) {
	client, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("other", "keep"))
	s, err := NewRedisStorage(RedisStorageConfig{Client: client, Prefix: "limiter:"})
	require.NoError(t, err)

	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))
	require.NoError(t, s.Reset())

	assert.False(t, mr.Exists("limiter:a"))
	assert.False(t, mr.Exists("limiter:b"))
	assert.True(t, mr.Exists("other"))
}

func TestLimiter_TooManyAttempts(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage, err := NewRedisStorage(RedisStorageConfig{Client: client, Prefix: "limiter:"})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	app.Get("/limited", New(Config{Max: 2, Window: time.Minute, Storage: storage}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
}

func TestLimiter_InMemoryDefault(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	app.Get("/limited", New(Config{Max: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
}
