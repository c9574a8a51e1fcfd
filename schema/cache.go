package schema

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/wippyai/tbl/errors"
)

// Source is the lookup side of a schema store.
type Source interface {
	Lookup(name string) (*Schema, error)
}

type cacheEntry struct {
	schema  *Schema
	missing bool
}

// CachedStore memoizes lookups of an underlying store. Lookups that fail
// with SchemaNotFound are cached as well; other errors are not.
// It is safe for concurrent use.
type CachedStore struct {
	src   Source
	cache *lru.Cache
	mu    sync.Mutex
}

// NewCachedStore wraps src with a cache holding up to size schemas.
// A size of zero means no limit.
func NewCachedStore(src Source, size int) *CachedStore {
	return &CachedStore{src: src, cache: lru.New(size)}
}

func (c *CachedStore) Lookup(name string) (*Schema, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(name); ok {
		c.mu.Unlock()
		if e := v.(cacheEntry); !e.missing {
			return e.schema, nil
		}
		return nil, errors.SchemaNotFound(errors.PhaseLoad, name)
	}
	c.mu.Unlock()

	s, err := c.src.Lookup(name)
	if err != nil && !errors.IsKind(err, errors.KindSchemaNotFound) {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(name, cacheEntry{schema: s, missing: err != nil})
	c.mu.Unlock()
	return s, err
}

// Len returns the number of cached names.
func (c *CachedStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
