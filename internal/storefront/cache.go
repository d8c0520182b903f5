package storefront

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"RocketShoes/internal/cart"
)

const DefaultProductTTL = 5 * time.Minute

type cachedProduct struct {
	p         cart.Product
	expiresAt time.Time
}

// CachedCatalog is a cache-aside wrapper for product lookups. Concurrent
// misses for the same id share one upstream call. Errors are not cached.
type CachedCatalog struct {
	next cart.ProductCatalog
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[int]cachedProduct
	group singleflight.Group
}

func NewCachedCatalog(next cart.ProductCatalog, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &CachedCatalog{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[int]cachedProduct),
	}
}

func (c *CachedCatalog) lookup(id int) (cart.Product, bool) {
	c.mu.RLock()
	it, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return cart.Product{}, false
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		delete(c.items, id)
		c.mu.Unlock()
		return cart.Product{}, false
	}
	return it.p, true
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID int) (cart.Product, error) {
	if p, ok := c.lookup(productID); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(productID), func() (any, error) {
		if p, ok := c.lookup(productID); ok {
			return p, nil
		}
		p, err := c.next.GetProduct(ctx, productID)
		if err != nil {
			return cart.Product{}, err
		}
		c.mu.Lock()
		c.items[productID] = cachedProduct{p: p, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return cart.Product{}, err
	}
	return v.(cart.Product), nil
}
