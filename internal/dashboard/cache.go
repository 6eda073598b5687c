package dashboard

// Cache stores pipelines from the list view keyed by pipeline ID, so the
// detail header can show the schedule without another request.
// It is not safe for concurrent use; callers must synchronize externally
// or confine access to a single goroutine (e.g., the Bubble Tea update loop).
type Cache struct {
	entries map[string]*Pipeline
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Pipeline)}
}

// Get returns the cached pipeline for the given ID, or nil and false on miss.
func (c *Cache) Get(id string) (*Pipeline, bool) {
	p, ok := c.entries[id]
	return p, ok
}

// Fill replaces the cache contents with the given pipelines.
func (c *Cache) Fill(pipelines []Pipeline) {
	c.Invalidate()
	for i := range pipelines {
		p := pipelines[i]
		c.entries[p.ID] = &p
	}
}

// Invalidate clears all cached entries.
func (c *Cache) Invalidate() {
	c.entries = make(map[string]*Pipeline)
}
