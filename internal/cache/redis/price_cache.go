package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each symbol's
// quote is stored at key "price:{symbol}" with fields "price" and "ts"
// (Unix nanosecond timestamp). Quotes never expire: a stale quote with its
// as-of timestamp beats no quote at all when the feed is down.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// SetQuote stores the latest quote for one symbol.
func (pc *PriceCache) SetQuote(ctx context.Context, q domain.PriceQuote) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(q.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(q.AsOf.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(q.Symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for one symbol. It returns
// domain.ErrNotFound when no quote is cached.
func (pc *PriceCache) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(symbol)).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	return parseQuote(symbol, vals)
}

// SetAll stores a full quote map from one feed poll using a pipeline.
func (pc *PriceCache) SetAll(ctx context.Context, prices domain.PriceMap) error {
	if len(prices) == 0 {
		return nil
	}
	pipe := pc.rdb.Pipeline()
	for symbol, q := range prices {
		pipe.HSet(ctx, priceKey(symbol), map[string]interface{}{
			"price": strconv.FormatFloat(q.Price, 'f', -1, 64),
			"ts":    strconv.FormatInt(q.AsOf.UnixNano(), 10),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes pipeline: %w", err)
	}
	return nil
}

// GetAll retrieves quotes for multiple symbols using a pipeline. Symbols
// with no cached quote are silently omitted from the result map.
func (pc *PriceCache) GetAll(ctx context.Context, symbols []string) (domain.PriceMap, error) {
	if len(symbols) == 0 {
		return domain.PriceMap{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, symbol := range symbols {
		cmds[symbol] = pipe.HGetAll(ctx, priceKey(symbol))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes pipeline: %w", err)
	}

	result := make(domain.PriceMap, len(symbols))
	for symbol, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, err := parseQuote(symbol, vals)
		if err != nil {
			continue
		}
		result[symbol] = q
	}
	return result, nil
}

func parseQuote(symbol string, vals map[string]string) (domain.PriceQuote, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	return domain.PriceQuote{Symbol: symbol, Price: price, AsOf: time.Unix(0, tsNano)}, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
