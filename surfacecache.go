/*
Copyright © 2025 the floodmask authors.
This file is part of floodmask.

floodmask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

floodmask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with floodmask.  If not, see <http://www.gnu.org/licenses/>.
*/

package floodmask

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// surfaceCache holds recently used analysis grid surfaces by raster
// path. Concurrent requests for the same raster share one load.
type surfaceCache struct {
	load  func(file string) ([]float64, error)
	group singleflight.Group

	mu          sync.Mutex
	lru         *lru.Cache
	hits, loads int
}

func newSurfaceCache(maxEntries int, load func(file string) ([]float64, error)) *surfaceCache {
	return &surfaceCache{load: load, lru: lru.New(maxEntries)}
}

// get returns the surface of file, loading it if it is not cached.
func (c *surfaceCache) get(ctx context.Context, file string) ([]float64, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(file); ok {
		c.hits++
		c.mu.Unlock()
		return v.([]float64), nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(file, func() (interface{}, error) {
		z, err := c.load(file)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.loads++
		c.lru.Add(file, z)
		c.mu.Unlock()
		return z, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]float64), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stats returns the number of cache hits and raster loads.
func (c *surfaceCache) stats() (hits, loads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.loads
}
