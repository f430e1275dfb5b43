package rates

import (
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/cache"
	"savings/internal/core"
)

// Cached memoizes successful Rate lookups of another provider. Conversions
// always go to the wrapped provider so amounts stay consistent with it.
type Cached struct {
	next  Provider
	rates *cache.LRUCache[decimal.Decimal]
}

var _ Provider = (*Cached)(nil)

func NewCached(next Provider, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		rates: cache.NewLRUCache[decimal.Decimal](size, ttl),
	}
}

// Cache exposes the underlying cache so it can be registered with a cache.Manager.
func (c *Cached) Cache() cache.Cleaner {
	return c.rates
}

func (c *Cached) Rate(from, to string) (decimal.Decimal, error) {
	key := core.NormalizeCurrency(from) + "/" + core.NormalizeCurrency(to)
	if r, ok := c.rates.Get(key); ok {
		return r, nil
	}
	r, err := c.next.Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	c.rates.Set(key, r)
	return r, nil
}

func (c *Cached) Convert(amount decimal.Decimal, from, to string) (Conversion, error) {
	return c.next.Convert(amount, from, to)
}
