package objcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(ctx, "version@0")
	require.False(t, ok)

	c.Set(ctx, "version@0", []byte("01.02.125"))
	c.Wait()

	b, ok := c.Get(ctx, "version@0")
	require.True(t, ok)
	require.Equal(t, "01.02.125", string(b))
}
