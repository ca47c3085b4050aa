package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 4})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPushPop(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("termmatrix:test:%d", time.Now().UnixNano())
	t.Cleanup(func() { c.Del(ctx, key) })

	require.NoError(t, c.Push(ctx, key, []byte("a\x00b\x00"), time.Minute))
	got, err := c.Pop(ctx, key, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("a\x00b\x00"), got)
}

func TestPopTimeout(t *testing.T) {
	c := skipIfNoRedis(t)
	key := fmt.Sprintf("termmatrix:test:empty:%d", time.Now().UnixNano())
	_, err := c.Pop(context.Background(), key, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestFlushByPattern(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("termmatrix:flush:%d", time.Now().UnixNano())
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Push(ctx, fmt.Sprintf("%s:%d", prefix, i), []byte("x"), time.Minute))
	}

	n, err := c.FlushByPattern(ctx, prefix+":*")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
