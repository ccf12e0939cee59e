package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/gateway/internal/config"
)

// 需要真实 Redis：TEMPMAIL_TEST_REDIS_ADDR=localhost:6379 go test ./internal/cache/
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEMPMAIL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEMPMAIL_TEST_REDIS_ADDR not set")
	}

	c, err := NewRedisCache(&config.RedisConfig{Address: addr}, "test:"+uuid.NewString()+":", nil)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	_, ok, err := c.Get(ctx, "domains")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "domains", []byte(`["barid.site"]`), 200*time.Millisecond))

	data, ok, err := c.Get(ctx, "domains")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`["barid.site"]`), data)

	assert.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, "domains")
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)
}
