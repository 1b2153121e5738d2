// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import (
	"sync/atomic"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru"
	errors "gopkg.in/src-d/go-errors.v1"
)

// CacheKey returns a hash of the given parts to be used as key in a cache.
func CacheKey(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write([]byte(p))
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// ErrKeyNotFound is returned when the key could not be found in the cache.
var ErrKeyNotFound = errors.NewKind("memory: key %d not found in cache")

// ActionCache is a bounded LRU cache of parsed action trees. Trees are
// cloned on the way in and on the way out, so callers may modify them.
type ActionCache struct {
	cache  *lru.Cache
	hits   uint64
	misses uint64
}

// NewActionCache creates a cache holding at most size trees. A non
// positive size disables caching.
func NewActionCache(size int) *ActionCache {
	if size <= 0 {
		return &ActionCache{}
	}

	c, _ := lru.New(size)
	return &ActionCache{cache: c}
}

// Put stores the tree under the given key.
func (c *ActionCache) Put(k uint64, a *Action) {
	if c.cache == nil || a == nil {
		return
	}
	c.cache.Add(k, a.Clone())
}

// Get returns a copy of the tree stored under the given key.
func (c *ActionCache) Get(k uint64) (*Action, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(k); ok {
			atomic.AddUint64(&c.hits, 1)
			return v.(*Action).Clone(), nil
		}
	}

	atomic.AddUint64(&c.misses, 1)
	return nil, ErrKeyNotFound.New(k)
}

// Len returns the number of cached trees.
func (c *ActionCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge removes every cached tree.
func (c *ActionCache) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Stats returns the number of hits and misses so far.
func (c *ActionCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}
