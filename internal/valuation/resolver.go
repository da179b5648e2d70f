package valuation

import (
	"math"
	"strings"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// quoteSuffix is the pair suffix assumed when a bare base symbol needs its
// pair form for lookup.
const quoteSuffix = "-EUR"

// Resolve finds a usable live quote for symbol in the given price map using
// a deterministic fallback chain, stopping at the first positive-price hit:
//
//  1. exact pair form ("BTC-EUR")
//  2. bare base symbol ("BTC")
//  3. case-insensitive pair form
//  4. case-insensitive base symbol
//
// A quote with a non-positive or non-finite price counts as absent and
// resolution continues down the chain. Resolve is total: it either returns
// a positive price or found=false, never an error and never zero as a
// "valid" price.
func Resolve(symbol string, prices domain.PriceMap) (domain.PriceQuote, bool) {
	if len(prices) == 0 {
		return domain.PriceQuote{}, false
	}
	base := domain.BaseSymbol(symbol)
	pair := symbol
	if base == strings.TrimSpace(symbol) {
		pair = base + quoteSuffix
	}

	if q, ok := lookupExact(pair, prices); ok {
		return q, true
	}
	if q, ok := lookupExact(base, prices); ok {
		return q, true
	}
	if q, ok := lookupFold(pair, prices); ok {
		return q, true
	}
	if q, ok := lookupFold(base, prices); ok {
		return q, true
	}
	return domain.PriceQuote{}, false
}

func lookupExact(key string, prices domain.PriceMap) (domain.PriceQuote, bool) {
	q, ok := prices[key]
	if !ok || !usable(q.Price) {
		return domain.PriceQuote{}, false
	}
	return q, true
}

// lookupFold scans for a case-insensitive key match. When several map keys
// fold to the same symbol the lexicographically smallest wins, so resolution
// stays deterministic across calls.
func lookupFold(key string, prices domain.PriceMap) (domain.PriceQuote, bool) {
	var (
		best  domain.PriceQuote
		bestK string
		found bool
	)
	for k, q := range prices {
		if !strings.EqualFold(k, key) || !usable(q.Price) {
			continue
		}
		if !found || k < bestK {
			best, bestK, found = q, k, true
		}
	}
	return best, found
}

func usable(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}
