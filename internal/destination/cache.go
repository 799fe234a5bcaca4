package destination

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const listKey = "all"

// CachedRepository keeps the last successful List result for a stale time.
// Failed reads are not cached.
type CachedRepository struct {
	next  Repository
	cache *expirable.LRU[string, []Destination]
}

// NewCachedRepository wraps next; a cached list is served until staleTime passes.
func NewCachedRepository(next Repository, staleTime time.Duration) *CachedRepository {
	return &CachedRepository{
		next:  next,
		cache: expirable.NewLRU[string, []Destination](1, nil, staleTime),
	}
}

// List returns the cached list, reading through on a miss.
func (r *CachedRepository) List(ctx context.Context) ([]Destination, error) {
	if items, ok := r.cache.Get(listKey); ok {
		return clone(items), nil
	}

	items, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Add(listKey, clone(items))
	return items, nil
}

// Invalidate drops the cached list.
func (r *CachedRepository) Invalidate() {
	r.cache.Purge()
}

func clone(items []Destination) []Destination {
	out := make([]Destination, len(items))
	copy(out, items)
	return out
}
