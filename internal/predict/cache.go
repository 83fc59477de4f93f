package predict

import (
	"sort"
	"sync"

	"donorsense/internal/model"
)

// Cache holds the most recent prediction per donor and model. Writes are
// last-write-wins with no history; entries are never evicted in the
// background, staleness is handled on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]map[string]model.DonorPrediction // donor id -> model id -> prediction
}

// NewCache creates an empty prediction cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]map[string]model.DonorPrediction),
	}
}

// Get returns the cached prediction for a donor and model, if any. The
// caller decides whether a stale entry is acceptable.
func (c *Cache) Get(donorID, modelID string) (model.DonorPrediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byModel, ok := c.entries[donorID]
	if !ok {
		return model.DonorPrediction{}, false
	}
	p, ok := byModel[modelID]
	return p, ok
}

// Put stores a prediction, replacing any previous entry for the same donor
// and model.
func (c *Cache) Put(p model.DonorPrediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byModel, ok := c.entries[p.DonorID]
	if !ok {
		byModel = make(map[string]model.DonorPrediction)
		c.entries[p.DonorID] = byModel
	}
	byModel[p.ModelID] = p
}

// DonorPredictions returns every cached prediction for a donor, newest
// first. Entries may be past their validity window; callers must check
// ValidUntil.
func (c *Cache) DonorPredictions(donorID string) []model.DonorPrediction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byModel, ok := c.entries[donorID]
	if !ok {
		return nil
	}
	out := make([]model.DonorPrediction, 0, len(byModel))
	for _, p := range byModel {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ModelID < out[j].ModelID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}

// Len reports how many donors currently have cached predictions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
