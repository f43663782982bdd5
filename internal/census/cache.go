package census

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/demographics-cli/internal/geo"
)

// countyCache is a populate-once store keyed by county. Entries live for the
// process lifetime. Concurrent first fetches for one county share a single
// fill; failed or non-cacheable fills are not stored.
type countyCache[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[geo.CountyKey]V
	group   singleflight.Group
}

func newCountyCache[V any](name string) *countyCache[V] {
	return &countyCache[V]{name: name, entries: make(map[geo.CountyKey]V)}
}

// fillFunc produces the value for a key. ok=false keeps the value out of the
// cache while still returning it to the caller.
type fillFunc[V any] func(ctx context.Context) (v V, ok bool, err error)

func (c *countyCache[V]) get(ctx context.Context, key geo.CountyKey, fill fillFunc[V]) (V, error) {
	c.mu.RLock()
	v, hit := c.entries[key]
	c.mu.RUnlock()
	if hit {
		zap.L().Debug("census cache hit", zap.String("cache", c.name), zap.String("county", key.String()))
		return v, nil
	}

	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		v, hit := c.entries[key]
		c.mu.RUnlock()
		if hit {
			return v, nil
		}

		v, ok, err := fill(ctx)
		if err != nil {
			return v, err
		}
		if ok {
			c.mu.Lock()
			c.entries[key] = v
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *countyCache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
