package translation

import "sync"

// Cache stores translations for the lifetime of a process. It is safe for
// concurrent use.
type Cache struct {
	mu           sync.RWMutex
	translations map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{translations: make(map[string]string)}
}

func cacheKey(source, target, text string) string {
	return source + "\x00" + target + "\x00" + text
}

// Add stores a translation.
func (c *Cache) Add(source, target, text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.translations[cacheKey(source, target, text)] = translation
}

// Get retrieves a translation.
func (c *Cache) Get(source, target, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.translations[cacheKey(source, target, text)]
	return t, ok
}

// Len returns the number of cached translations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.translations)
}
