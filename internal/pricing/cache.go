package pricing

import (
	"sync"
	"time"
)

const listingTTL = 10 * time.Minute

type listingEntry struct {
	listing   pricesResponse
	expiresAt time.Time
}

// listingCache keeps model price lists by provider identifier so that several units of the same
// model in one sweep cost a single request. It is cleared whenever the provider publishes new data.
type listingCache struct {
	mu        sync.RWMutex
	entries   map[string]listingEntry
	published time.Time
	now       func() time.Time
}

func newListingCache() *listingCache {
	return &listingCache{
		entries: make(map[string]listingEntry),
		now:     time.Now,
	}
}

func (c *listingCache) get(externalID string) (pricesResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[externalID]
	if !ok || c.now().After(entry.expiresAt) {
		return pricesResponse{}, false
	}
	return entry.listing, true
}

func (c *listingCache) set(externalID string, listing pricesResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[externalID] = listingEntry{
		listing:   listing,
		expiresAt: c.now().Add(listingTTL),
	}
}

// observe records the provider's publication time and drops every entry when it moved.
func (c *listingCache) observe(published time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if published.Equal(c.published) {
		return
	}
	c.published = published
	clear(c.entries)
}
