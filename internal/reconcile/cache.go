package reconcile

// sequenceCache holds motion sequences loaded during a single
// reconciliation run, keyed by their resolved file path. Many records
// reference different frames of the same sequence, and decoding an
// archive is far more expensive than a lookup.
//
// The cache is bounded by the number of entries; once full, the
// oldest entry is evicted.
type sequenceCache struct {
	capacity int
	order    []string
	content  map[string]*Sequence
}

func newSequenceCache(capacity int) *sequenceCache {
	return &sequenceCache{
		capacity: capacity,
		order:    make([]string, 0, max(capacity, 0)),
		content:  make(map[string]*Sequence, max(capacity, 0)),
	}
}

// HasKey returns true if a sequence is cached for the path provided.
func (cache *sequenceCache) HasKey(path string) bool {
	_, ok := cache.content[path]

	return ok
}

// RetrieveItem returns the sequence cached for the path provided, or nil.
func (cache *sequenceCache) RetrieveItem(path string) *Sequence {
	return cache.content[path]
}

// PushItem stores the sequence provided against the path, evicting
// the oldest entry if the cache is full. A capacity below one
// disables caching.
func (cache *sequenceCache) PushItem(path string, seq *Sequence) {
	if cache.capacity < 1 {
		return
	}

	if !cache.HasKey(path) {
		if len(cache.order) >= cache.capacity {
			delete(cache.content, cache.order[0])
			cache.order = cache.order[1:]
		}

		cache.order = append(cache.order, path)
	}

	cache.content[path] = seq
}

// Len returns the number of cached sequences.
func (cache *sequenceCache) Len() int {
	return len(cache.content)
}
