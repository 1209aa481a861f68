package fetch

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached keeps recently fetched payloads so that a session restart, or
// two sessions on the same forecast, do not download a field twice.
type Cached struct {
	next  Fetcher
	cache *expirable.LRU[string, []byte]
}

func NewCached(next Fetcher, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *Cached) Fetch(ctx context.Context, source string) ([]byte, error) {
	if b, ok := c.cache.Get(source); ok {
		return b, nil
	}
	b, err := c.next.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	c.cache.Add(source, b)
	return b, nil
}

func (c *Cached) Len() int {
	return c.cache.Len()
}
