package measurements

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/krillmap/dashboard/internal/period"
)

// CachedSource memoizes successful loads per period. Snapshot files are
// immutable for a given key, so entries never need invalidation; the LRU
// bound only caps memory. Concurrent misses for the same period share a
// single inner load, which is detached from any one caller's cancellation.
type CachedSource struct {
	inner  Source
	cache  *lru.Cache[string, *Dataset]
	flight singleflight.Group
}

func NewCachedSource(inner Source, size int) (*CachedSource, error) {
	if size <= 0 {
		size = 24
	}
	cache, err := lru.New[string, *Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("measurement cache: %w", err)
	}
	return &CachedSource{inner: inner, cache: cache}, nil
}

func (s *CachedSource) Load(ctx context.Context, p period.Period) (*Dataset, error) {
	key := p.Key()
	if ds, ok := s.cache.Get(key); ok {
		return ds, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		ds, err := s.inner.Load(shared, p)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, ds)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

// Len reports the number of cached periods.
func (s *CachedSource) Len() int {
	return s.cache.Len()
}
