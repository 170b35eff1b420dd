package usecase

import "time"

// DefaultDedupMaxEntries caps remembered fingerprints per sender
const DefaultDedupMaxEntries = 64

// DedupCache remembers recent fingerprints per sender with a sliding window
type DedupCache struct {
	window     time.Duration
	maxEntries int
	senders    *shardedMap[map[string]time.Time]
}

// NewDedupCache creates a dedup cache
func NewDedupCache(window time.Duration, maxEntries int) *DedupCache {
	if maxEntries <= 0 {
		maxEntries = DefaultDedupMaxEntries
	}
	return &DedupCache{
		window:     window,
		maxEntries: maxEntries,
		senders:    newShardedMap[map[string]time.Time](0),
	}
}

// IsDuplicate reports whether the sender sent this fingerprint within the window.
// Expired entries are purged first; a hit refreshes the entry's timestamp.
func (d *DedupCache) IsDuplicate(senderID, fingerprint string, now time.Time) bool {
	dup := false
	d.senders.with(senderID, func(items map[string]map[string]time.Time) {
		seen := items[senderID]
		if seen == nil {
			seen = make(map[string]time.Time)
			items[senderID] = seen
		}
		d.purge(seen, now)

		if _, ok := seen[fingerprint]; ok {
			dup = true
		} else if len(seen) >= d.maxEntries {
			evictOldest(seen)
		}
		seen[fingerprint] = now
	})
	return dup
}

// Sweep purges expired fingerprints and drops senders with none left
func (d *DedupCache) Sweep(now time.Time) int {
	removed := 0
	d.senders.each(func(items map[string]map[string]time.Time) {
		for sender, seen := range items {
			d.purge(seen, now)
			if len(seen) == 0 {
				delete(items, sender)
				removed++
			}
		}
	})
	return removed
}

// Len returns the number of tracked senders
func (d *DedupCache) Len() int {
	return d.senders.size()
}

func (d *DedupCache) purge(seen map[string]time.Time, now time.Time) {
	for fp, at := range seen {
		if now.Sub(at) >= d.window {
			delete(seen, fp)
		}
	}
}

func evictOldest(seen map[string]time.Time) {
	var oldestFP string
	var oldest time.Time
	for fp, at := range seen {
		if oldestFP == "" || at.Before(oldest) {
			oldestFP, oldest = fp, at
		}
	}
	delete(seen, oldestFP)
}
