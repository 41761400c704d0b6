package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apotekpos/backend/internal/domain"
)

func TestNoopSaleCacheNeverHits(t *testing.T) {
	var c SaleCache = NoopSaleCache{}
	require.NoError(t, c.Set(context.Background(), &domain.Sale{ID: 1}, time.Minute))

	got, ok, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSaleKey(t *testing.T) {
	assert.Equal(t, "sale:42", saleKey(42))
}

func TestRedisSaleCacheUnreachable(t *testing.T) {
	c := NewRedisSaleCache("127.0.0.1:1", "", 0)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Ping(ctx))

	require.NoError(t, c.Set(ctx, nil, time.Minute))
}
