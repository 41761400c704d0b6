package cache

import (
	"context"
	"strconv"
	"time"

	"apotekpos/backend/internal/domain"
)

// SaleCache holds committed sales for reads. Sales are immutable, so entries
// never need invalidation; the TTL only bounds memory.
type SaleCache interface {
	Get(ctx context.Context, id int64) (*domain.Sale, bool, error)
	Set(ctx context.Context, sale *domain.Sale, ttl time.Duration) error
}

type NoopSaleCache struct{}

func (NoopSaleCache) Get(_ context.Context, _ int64) (*domain.Sale, bool, error) {
	return nil, false, nil
}

func (NoopSaleCache) Set(_ context.Context, _ *domain.Sale, _ time.Duration) error {
	return nil
}

func saleKey(id int64) string {
	return "sale:" + strconv.FormatInt(id, 10)
}
