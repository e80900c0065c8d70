package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := New(ctx, WithAddress(addr))
	require.NoError(t, err)
	defer c.Close()

	key := "cache-test:" + uuid.NewString()
	var got map[string]int
	assert.True(t, errors.Is(c.Get(ctx, key, &got), ErrMiss))

	ok, err := c.SetNX(ctx, key, map[string]int{"a": 1}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, key, map[string]int{"a": 2}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, 1, got["a"])
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := New(ctx, WithAddress("127.0.0.1:1"))
	assert.Error(t, err)
}
