package search

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/isa"
)

type cacheKey struct {
	prog bunny.ID
	cfg  Config
}

// Searcher calls FindClock, remembering recent results.
// It is safe for concurrent use.
type Searcher struct {
	mu    sync.Mutex
	cache *simplelru.LRU[cacheKey, Result]
}

func NewSearcher(cacheSize int) *Searcher {
	cache, err := simplelru.NewLRU[cacheKey, Result](cacheSize, nil)
	if err != nil {
		panic(err)
	}
	return &Searcher{cache: cache}
}

// FindClock is like the package level FindClock, but results are cached.
func (s *Searcher) FindClock(ctx context.Context, prog isa.Program, cfg Config) (*Result, error) {
	key := cacheKey{prog: bunny.Fingerprint(prog), cfg: cfg}
	// the answer does not depend on the number of workers.
	key.cfg.Workers = 0
	s.mu.Lock()
	res, ok := s.cache.Get(key)
	s.mu.Unlock()
	if ok {
		return &res, nil
	}
	out, err := FindClock(ctx, prog, cfg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache.Add(key, *out)
	s.mu.Unlock()
	return out, nil
}

// Len returns the number of cached results
func (s *Searcher) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
