package canonpath

import lru "github.com/hashicorp/golang-lru/v2"

// Cache memoizes Canonicalize so the FULL_PATHNAME-guarded
// fullPathName callback isn't re-invoked for a path this cache has
// already canonicalized since the last Invalidate — every hooked call
// runs the canonicalizer at least once (§4.1), and a hot path (e.g. a
// loader repeatedly probing the same DLL search directories) would
// otherwise requery GetFullPathName on every single call.
//
// Grounded on rclone's dependency on golang-lru for its own
// frequently-re-derived-value caches (rclone's vfs cache layer pulls
// golang-lru in transitively for the same "avoid recomputing a
// deterministic function of a hot key" reason).
type Cache struct {
	lru *lru.Cache[string, string]
}

// NewCache creates a canonicalization cache holding up to size entries.
func NewCache(size int) *Cache {
	c, _ := lru.New[string, string](size)
	return &Cache{lru: c}
}

// CanonicalizeCached is Canonicalize with memoization: a cache hit
// skips fullPathName entirely.
func (c *Cache) CanonicalizeCached(path string, fullPathName FullPathName) string {
	if cached, ok := c.lru.Get(path); ok {
		return cached
	}

	result := Canonicalize(path, fullPathName)
	c.lru.Add(path, result)

	return result
}

// Invalidate drops every cached entry. Entries for relative paths
// reflect the current directory at the time they were cached; nothing
// in this module calls Invalidate when the current directory changes.
func (c *Cache) Invalidate() {
	c.lru.Purge()
}
