// Package dedup remembers recently submitted sources so duplicate submissions are caught
// before touching the database.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"blogmusic/core/resolver"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a bounded set of submission keys. The bloom filter answers most misses without
// taking the map path; the LRU decides what to forget once capacity is reached.
type Store struct {
	mu       sync.RWMutex
	keys     map[string]struct{}
	filter   *bloom.BloomFilter
	recent   *lru.Cache[string, struct{}]
	capacity int
	fpRate   float64
}

// New creates a Store holding at most capacity keys.
func New(capacity int, fpRate float64) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.001
	}
	s := &Store{
		keys:     make(map[string]struct{}),
		filter:   bloom.NewWithEstimates(uint(capacity), fpRate),
		capacity: capacity,
		fpRate:   fpRate,
	}
	// LRU 淘汰时同步删除 map 中的记录
	s.recent, _ = lru.NewWithEvict[string, struct{}](capacity, func(key string, _ struct{}) {
		delete(s.keys, key)
	})
	return s
}

// Key canonicalizes a source link: different share-link shapes for the same file map to
// the same key. The key is the hex sha256 of platform:primaryURL, so it always fits the
// 64-char column however long the link is.
func Key(sourceURL string, platform resolver.Platform) string {
	c := Canonical(sourceURL, platform)
	if c == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c))
	return hex.EncodeToString(sum[:])
}

// Canonical returns the readable form that Key hashes, e.g. "dropbox:https://dl...".
func Canonical(sourceURL string, platform resolver.Platform) string {
	src := strings.TrimSpace(sourceURL)
	if src == "" {
		return ""
	}
	if !platform.IsValid() {
		platform = resolver.IdentifyPlatform(src)
	}
	primary := resolver.ResolvePrimary(src, platform)
	return platform.String() + ":" + strings.TrimSuffix(primary, "/")
}

// Seen reports whether key was added and not yet forgotten.
func (s *Store) Seen(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.filter.TestString(key) {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Add records key, evicting the least recently added one when full.
func (s *Store) Add(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(key)
}

// Forget removes key, e.g. when its submission was rejected and may be sent again.
// The bloom bit stays set; the map check keeps that from producing a false duplicate.
func (s *Store) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Remove(key)
	delete(s.keys, key)
}

// Load replaces the contents with keys, typically all known sources at startup.
func (s *Store) Load(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Purge()
	s.keys = make(map[string]struct{}, len(keys))
	s.filter = bloom.NewWithEstimates(uint(s.capacity), s.fpRate)
	for _, k := range keys {
		if k != "" {
			s.addLocked(k)
		}
	}
}

// Len 当前记录数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *Store) addLocked(key string) {
	if _, ok := s.keys[key]; ok {
		return
	}
	s.keys[key] = struct{}{}
	s.filter.AddString(key)
	s.recent.Add(key, struct{}{})
}
