package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PromptPrefixCacheMaxEntries bounds the shared prompt-prefix and
// file-content caches, per spec §5 ("LRU-bounded MAX≈512 entries,
// insertion-order eviction").
const PromptPrefixCacheMaxEntries = 512

// PrefixKey is the compiled cache key for a chat request's prompt
// prefix, computed over (model, messages, jsonMode, dynamicTailMessages).
type PrefixKey struct {
	CacheKey         string
	StablePrefixHash string
	DynamicTailHash  string
}

// CompilePrefixKey hashes the stable portion of req.Messages (everything
// except the last dynamicTailMessages) separately from the dynamic tail,
// and combines the two into a single cache key.
func CompilePrefixKey(req *Request) PrefixKey {
	tailN := req.DynamicTailMessages
	if tailN <= 0 {
		tailN = 2
	}
	if tailN > len(req.Messages) {
		tailN = len(req.Messages)
	}
	stable := req.Messages[:len(req.Messages)-tailN]
	tail := req.Messages[len(req.Messages)-tailN:]

	stableHash := hashMessages(req.Model, req.JSONMode, stable)
	tailHash := hashMessages("", false, tail)

	return PrefixKey{
		CacheKey:         stableHash + ":" + tailHash,
		StablePrefixHash: stableHash,
		DynamicTailHash:  tailHash,
	}
}

func hashMessages(model string, jsonMode bool, messages []Message) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|", model, jsonMode)
	for _, m := range messages {
		fmt.Fprintf(h, "%s:%s|", m.Role, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PromptPrefixCache stores compiled prefix metadata keyed by PrefixKey.CacheKey.
type PromptPrefixCache struct {
	lru *lru.Cache[string, PrefixKey]
}

// NewPromptPrefixCache builds an LRU-bounded prompt-prefix cache.
func NewPromptPrefixCache() *PromptPrefixCache {
	c, _ := lru.New[string, PrefixKey](PromptPrefixCacheMaxEntries)
	return &PromptPrefixCache{lru: c}
}

// GetOrCompile returns the cached PrefixKey for req, computing and
// storing it on a miss.
func (c *PromptPrefixCache) GetOrCompile(req *Request) (PrefixKey, bool) {
	key := CompilePrefixKey(req)
	// Peek, not Get: a hit must not promote the entry, so eviction
	// stays in insertion order.
	if _, hit := c.lru.Peek(key.CacheKey); hit {
		return key, true
	}
	c.lru.Add(key.CacheKey, key)
	return key, false
}

// FileContentCache is a process-local cache of file contents read by tool
// handlers, shared across the process per spec §5. Entries are keyed by
// path only; no mtime or content fingerprint is checked, so a cached
// entry is returned unchanged after the file on disk changes.
type FileContentCache struct {
	lru *lru.Cache[string, []byte]
}

// NewFileContentCache builds an LRU-bounded file-content cache.
func NewFileContentCache() *FileContentCache {
	c, _ := lru.New[string, []byte](PromptPrefixCacheMaxEntries)
	return &FileContentCache{lru: c}
}

func (c *FileContentCache) Get(path string) ([]byte, bool) {
	return c.lru.Peek(path)
}

func (c *FileContentCache) Put(path string, content []byte) {
	c.lru.Add(path, content)
}
