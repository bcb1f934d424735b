// Package cache provides a fixed-size page cache in front of a pager.Store.
// Pages handed to a store are never rewritten in place, so the cache only
// has to forget pages on Free.
package cache

import (
	"sync"

	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"
	"go-kvtree/util/helpers"
)

func New(store pager.Store, size int) *Cache {
	if size < 1 {
		size = 1
	}

	return &Cache{
		store: store,
		size:  size,
		items: make(map[pager.PageID][]byte, size),
		keys:  make([]pager.PageID, size),
		index: 0,
	}
}

// Cache evicts pages in insertion order: keys is a ring and index points at
// the slot that is reused next. It is safe for concurrent use when the
// underlying store is.
type Cache struct {
	mu    sync.Mutex
	store pager.Store
	size  int
	items map[pager.PageID][]byte
	keys  []pager.PageID
	index int

	hits   uint64
	misses uint64
}

func (c *Cache) Alloc(data []byte) (pager.PageID, error) {
	id, err := c.store.Alloc(data)
	if err != nil {
		return pager.Nil, err
	}

	c.mu.Lock()
	c.add(id, helpers.CloneBytes(data))
	c.mu.Unlock()
	return id, nil
}

func (c *Cache) Get(id pager.PageID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.items[id]; ok {
		c.hits++
		return helpers.CloneBytes(d), nil
	}

	c.misses++
	d, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}

	c.add(id, helpers.CloneBytes(d))
	return d, nil
}

func (c *Cache) Free(id pager.PageID) error {
	c.mu.Lock()
	if _, ok := c.items[id]; ok {
		delete(c.items, id)
		for i := range c.keys {
			if c.keys[i] == id {
				c.keys[i] = pager.Nil
				break
			}
		}
	}
	c.mu.Unlock()
	return c.store.Free(id)
}

func (c *Cache) Count() (int, error) {
	if counter, ok := c.store.(pager.Counter); ok {
		return counter.Count()
	}
	return 0, customerrors.ErrNotFound
}

func (c *Cache) ReadMeta() ([]byte, error) {
	if ms, ok := c.store.(pager.MetaStore); ok {
		return ms.ReadMeta()
	}
	return nil, customerrors.ErrNotFound
}

func (c *Cache) WriteMeta(d []byte) error {
	if ms, ok := c.store.(pager.MetaStore); ok {
		return ms.WriteMeta(d)
	}
	return nil
}

// Stats returns the number of reads served from the cache and from the
// underlying store.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[pager.PageID][]byte, c.size)
	c.keys = make([]pager.PageID, c.size)
	c.index = 0
}

func (c *Cache) Close() error {
	c.Clear()
	return c.store.Close()
}

func (c *Cache) add(id pager.PageID, d []byte) {
	if _, ok := c.items[id]; ok {
		return
	}

	if old := c.keys[c.index]; !old.IsNil() {
		delete(c.items, old)
	}

	c.keys[c.index] = id
	c.items[id] = d

	c.index++
	if c.index == c.size {
		c.index = 0
	}
}
