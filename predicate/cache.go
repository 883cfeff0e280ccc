package predicate

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCache stores compiled programs keyed by engine and expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DefaultCacheSize bounds NewLRUCache when size is not positive.
const DefaultCacheSize = 256

// LRUCache is a bounded ProgramCache.
type LRUCache struct {
	cache *lru.Cache[string, any]
}

var _ ProgramCache = (*LRUCache)(nil)

// NewLRUCache returns a cache holding at most size programs.
func NewLRUCache(size int) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		panic(err)
	}
	return &LRUCache{cache: cache}
}

// Get implements ProgramCache.
func (c *LRUCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set implements ProgramCache.
func (c *LRUCache) Set(key string, value any) {
	c.cache.Add(key, value)
}

// Len returns the number of cached programs.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}

// cached returns the program stored under key or compiles and stores it.
// Entries of another type are recompiled.
func cached[P any](cache ProgramCache, key string, compile func() (P, error)) (P, error) {
	if cache != nil {
		if value, ok := cache.Get(key); ok {
			if program, ok := value.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}
