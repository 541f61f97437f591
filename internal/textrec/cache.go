package textrec

import (
	"container/list"
	"sync"
)

// resultCache is a bounded LRU keyed by file path. Recognition is expensive
// enough that rescans of recently seen files should not hit the engine again
// within one process lifetime.
type resultCache struct {
	mu      sync.Mutex
	limit   int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	path      string
	fragments []Fragment
}

func newResultCache(limit int) *resultCache {
	if limit <= 0 {
		limit = 1
	}
	return &resultCache{
		limit:   limit,
		order:   list.New(),
		entries: make(map[string]*list.Element, limit),
	}
}

func (c *resultCache) get(path string) ([]Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).fragments, true
}

func (c *resultCache) put(path string, fragments []Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[path]; ok {
		elem.Value.(*cacheEntry).fragments = fragments
		c.order.MoveToFront(elem)
		return
	}
	c.entries[path] = c.order.PushFront(&cacheEntry{path: path, fragments: fragments})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).path)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
