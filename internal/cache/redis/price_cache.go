package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

// PriceCache implements domain.Oracle using Redis hashes. Each currency's
// price is stored as a hash at key "price:{currency}" with fields "price"
// (a decimal string, quoted in an arbitrary common unit) and "ts" (Unix
// nanosecond timestamp). Relative prices are computed by dividing the two
// feeds; a feed older than MaxAge is treated as missing.
type PriceCache struct {
	rdb    *redis.Client
	maxAge time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. maxAge
// bounds feed staleness; zero disables the staleness check.
func NewPriceCache(c *Client, maxAge time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Client, maxAge: maxAge}
}

func priceKey(currency domain.CurrencyID) string {
	return "price:" + string(currency)
}

// SetPrice stores the latest price and timestamp for a currency.
func (pc *PriceCache) SetPrice(ctx context.Context, currency domain.CurrencyID, price decimal.Decimal, ts time.Time) error {
	if price.Sign() <= 0 {
		return domain.ErrInvalidFeedPrice
	}
	key := priceKey(currency)
	fields := map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", currency, err)
	}
	return nil
}

// GetPrice retrieves the latest price for a currency. It returns
// domain.ErrNotFound when no fresh feed exists.
func (pc *PriceCache) GetPrice(ctx context.Context, currency domain.CurrencyID) (decimal.Decimal, time.Time, error) {
	key := priceKey(currency)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", currency, err)
	}
	if len(vals) == 0 {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %s: %w", currency, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", currency, err)
	}
	ts := time.Unix(0, tsNano)

	if pc.maxAge > 0 && time.Since(ts) > pc.maxAge {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	return price, ts, nil
}

// GetRelativePrice returns how many units of quote one unit of base is
// worth, computed from the two stored feeds. ok is false when either feed is
// missing, stale or non-positive.
func (pc *PriceCache) GetRelativePrice(ctx context.Context, base, quote domain.CurrencyID) (decimal.Decimal, bool) {
	basePrice, _, err := pc.GetPrice(ctx, base)
	if err != nil || basePrice.Sign() <= 0 {
		return decimal.Zero, false
	}
	quotePrice, _, err := pc.GetPrice(ctx, quote)
	if err != nil || quotePrice.Sign() <= 0 {
		return decimal.Zero, false
	}
	return basePrice.Div(quotePrice), true
}

// Compile-time interface check.
var _ domain.Oracle = (*PriceCache)(nil)
