package fuzzy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
)

// sidecarDocument is the on-disk shape of a fuzzy vocabulary cache file,
// one per index: "<dir>/<index>_fuzzy_cache.json".
type sidecarDocument struct {
	Index     string           `json:"index"`
	UpdatedAt time.Time        `json:"updated_at"`
	Terms     []VocabularyTerm `json:"terms"`
}

// Cache layers an in-memory LRU of per-term expansion results over an
// on-disk JSON vocabulary snapshot, guarded by an inter-process file lock so
// multiple arbor processes sharing a storage directory don't corrupt each
// other's sidecar file.
type Cache struct {
	path string

	mu    sync.RWMutex
	lock  *flock.Flock
	vocab []VocabularyTerm

	variants *lru.Cache[string, []Variant]
}

// NewCache opens (without requiring it to exist) the sidecar cache file for
// indexName under dir, with an LRU of capacity variantCacheSize for
// per-term expansion results.
func NewCache(dir, indexName string, variantCacheSize int) (*Cache, error) {
	if variantCacheSize <= 0 {
		variantCacheSize = 512
	}
	variants, err := lru.New[string, []Variant](variantCacheSize)
	if err != nil {
		return nil, fmt.Errorf("fuzzy: creating variant cache: %w", err)
	}

	path := filepath.Join(dir, indexName+"_fuzzy_cache.json")
	c := &Cache{
		path:     path,
		lock:     flock.New(path + ".lock"),
		variants: variants,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// load reads the sidecar file if it exists. A missing, unreadable or
// corrupt file is not an error: the cache starts with an empty vocabulary,
// so callers fall back to a live storage read until the next
// SetVocabulary rewrites the file.
func (c *Cache) load() error {
	if err := c.lock.RLock(); err != nil {
		return fmt.Errorf("fuzzy: locking cache %s: %w", c.path, err)
	}
	defer c.lock.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}

	var doc sidecarDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	c.mu.Lock()
	c.vocab = doc.Terms
	c.mu.Unlock()
	return nil
}

// Vocabulary returns the cached vocabulary snapshot.
func (c *Cache) Vocabulary() []VocabularyTerm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]VocabularyTerm, len(c.vocab))
	copy(out, c.vocab)
	return out
}

// SetVocabulary replaces the in-memory vocabulary snapshot and persists it
// to the sidecar file under an exclusive lock, invalidating the per-term
// variant cache since the candidate pool changed.
func (c *Cache) SetVocabulary(indexName string, terms []VocabularyTerm) error {
	c.mu.Lock()
	c.vocab = terms
	c.variants.Purge()
	c.mu.Unlock()

	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("fuzzy: locking cache %s: %w", c.path, err)
	}
	defer c.lock.Unlock()

	doc := sidecarDocument{Index: indexName, UpdatedAt: time.Now(), Terms: terms}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("fuzzy: encoding cache %s: %w", c.path, err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("fuzzy: writing cache %s: %w", c.path, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("fuzzy: renaming cache %s: %w", c.path, err)
	}
	return nil
}

// Expand returns the cached expansion for term under opts, computing and
// caching it via matcher against vocab on a miss. The cache key folds in
// the algorithm so switching Options.Algorithm doesn't serve stale
// variants. vocab is supplied by the caller rather than read from the
// cache's own snapshot so a caller with a fresher live vocabulary (e.g. a
// storage read that beat the sidecar refresh) isn't shadowed by a stale or
// empty one.
func (c *Cache) Expand(matcher Matcher, term string, vocab []VocabularyTerm, opts Options) []Variant {
	key := string(opts.Algorithm) + ":" + term
	if cached, ok := c.variants.Get(key); ok {
		return cached
	}

	variants := matcher.Expand(term, vocab, opts)
	c.variants.Add(key, variants)
	return variants
}

// Close releases the file lock held by the cache, if any.
func (c *Cache) Close() error {
	return c.lock.Unlock()
}
