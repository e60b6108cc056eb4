package iocache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/textsim"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	TTL     time.Duration    // 0 = entries never expire
	MaxSize int              // 0 = unbounded
	Clock   func() time.Time // defaults to time.Now
	Logger  *slog.Logger
}

// memoryEntry is one cached unit result.
type memoryEntry struct {
	key       string
	value     any
	source    fn.Option[schema.SimilarityKey]
	tokens    map[string]struct{}
	createdAt time.Time
}

// MemoryStore is a TTL-keyed, LRU-bounded store of unit results with
// exact and approximate lookup. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	log     *slog.Logger

	lru   *list.List // front is most recently used
	items map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

var _ contract.CacheStore = &MemoryStore{} // Compile-time check

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
		now:     clock,
		log:     contract.LoggerOrDefault(opts.Logger).With("component", "cache"),
		lru:     list.New(),
		items:   make(map[string]*list.Element),
	}
}

// Get returns the value for key unless it is missing or expired.
// Expired entries are removed as a side effect.
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if s.expired(entry) {
		s.remove(el)
		s.misses++
		return nil, false
	}
	s.lru.MoveToFront(el)
	s.hits++
	return entry.value, true
}

// Set inserts or overwrites the value for key.
func (s *MemoryStore) Set(key string, value any) {
	s.put(key, value, fn.None[schema.SimilarityKey]())
}

// SetWithSource is Set that also records the text the value was produced from,
// so FindSimilar can match reworded requests.
func (s *MemoryStore) SetWithSource(key string, value any, source schema.SimilarityKey) {
	s.put(key, value, fn.Some(source))
}

func (s *MemoryStore) put(key string, value any, source fn.Option[schema.SimilarityKey]) {
	var tokens map[string]struct{}
	source.WhenSome(func(src schema.SimilarityKey) {
		tokens = textsim.Tokens(src.Text)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.source = source
		entry.tokens = tokens
		entry.createdAt = s.now()
		s.lru.MoveToFront(el)
		return
	}

	if s.maxSize > 0 && s.lru.Len() >= s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.remove(oldest)
			s.evictions++
		}
	}
	entry := &memoryEntry{key: key, value: value, source: source, tokens: tokens, createdAt: s.now()}
	s.items[key] = s.lru.PushFront(entry)
}

// FindSimilar scans entries of the same category, least recently used first,
// and returns the first whose source text has token-Jaccard similarity
// of at least threshold with candidate.
func (s *MemoryStore) FindSimilar(candidate, category string, threshold float64) (any, bool) {
	candidateTokens := textsim.Tokens(candidate)

	s.mu.Lock()
	defer s.mu.Unlock()

	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*memoryEntry)
		if s.expired(entry) {
			s.remove(el)
			el = prev
			continue
		}
		matched := false
		entry.source.WhenSome(func(src schema.SimilarityKey) {
			matched = src.Category == category && textsim.Jaccard(candidateTokens, entry.tokens) >= threshold
		})
		if matched {
			s.lru.MoveToFront(el)
			s.hits++
			return entry.value, true
		}
		el = prev
	}
	s.misses++
	return nil, false
}

// Stats returns the monotonic counters and the current size.
func (s *MemoryStore) Stats() schema.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.CacheStats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Size:      s.lru.Len(),
	}
}

// ClearExpired removes every entry past its TTL and returns how many were removed.
func (s *MemoryStore) ClearExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if s.expired(el.Value.(*memoryEntry)) {
			s.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// StartSweeper runs ClearExpired every interval until ctx ends.
// It returns immediately when interval or the TTL is zero.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.ClearExpired(); n > 0 {
					s.log.Debug("swept expired entries", "removed", n)
				}
			}
		}
	}()
}

// expired must be called with mu held.
func (s *MemoryStore) expired(entry *memoryEntry) bool {
	return s.ttl > 0 && s.now().Sub(entry.createdAt) > s.ttl
}

// remove must be called with mu held.
func (s *MemoryStore) remove(el *list.Element) {
	entry := s.lru.Remove(el).(*memoryEntry)
	delete(s.items, entry.key)
}
