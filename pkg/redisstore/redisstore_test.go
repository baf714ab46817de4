package redisstore_test

import (
	"testing"
	"time"

	"sportstore/pkg/redisstore"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*redisstore.Storage)(nil)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestConfigNew_RejectsBadURL(t *testing.T) {
	cfg := &redisstore.Config{URL: "http://localhost:6379"}
	client, err := cfg.New()
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestConfigNew_FailsWhenUnreachable(t *testing.T) {
	cfg := &redisstore.Config{URL: "redis://127.0.0.1:1/0", DialTimeout: 1}
	client, err := cfg.New()
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestStorage_Key(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	assert.Equal(t, "fiber:10.0.0.1", redisstore.New(client, "").Key("10.0.0.1"))
	assert.Equal(t, "limiter:10.0.0.1", redisstore.New(client, "limiter:").Key("10.0.0.1"))
}

func TestStorage_EmptyKeysAreNoops(t *testing.T) {
	client := unreachableClient()
	store := redisstore.New(client, "limiter:")

	val, err := store.Get("")
	assert.NoError(t, err)
	assert.Nil(t, val)
	assert.NoError(t, store.Set("", []byte("1"), time.Minute))
	assert.NoError(t, store.Set("k", nil, time.Minute))
	assert.NoError(t, store.Delete(""))
	require.NoError(t, store.Close())
}

func TestStorage_SurfacesConnectionErrors(t *testing.T) {
	client := unreachableClient()
	store := redisstore.New(client, "limiter:")
	defer store.Close()

	_, err := store.Get("10.0.0.1")
	assert.Error(t, err)
	assert.Error(t, store.Set("10.0.0.1", []byte("1"), time.Minute))
}
