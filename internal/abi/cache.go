package abi

import (
	"sync"

	"dffi/internal/types"
)

type cacheKey struct {
	fn     types.TypeID
	extras string
}

// planCache only holds successful plans: an error caused by an opaque type
// goes away once the type is defined.
type planCache struct {
	mu     sync.RWMutex
	byType map[cacheKey]*Plan
}

func newPlanCache() *planCache {
	return &planCache{byType: make(map[cacheKey]*Plan, 64)}
}

func (c *planCache) get(key cacheKey) (*Plan, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byType[key]
	return p, ok
}

// put keeps the first plan stored under key so every caller shares it.
func (c *planCache) put(key cacheKey, p *Plan) *Plan {
	if c == nil || p == nil {
		return p
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byType[key]; ok {
		return prev
	}
	c.byType[key] = p
	return p
}

func (c *planCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byType)
}
