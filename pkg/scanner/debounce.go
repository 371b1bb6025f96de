package scanner

import (
	"sync"
	"time"
)

// debounceSet is the short-lived per-tab set of exact source strings under
// evaluation. A source enters the set the moment it is queued and stays for
// the TTL unless evaluation fails, which frees the slot immediately so a
// later scan tick can retry.
type debounceSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newDebounceSet(ttl time.Duration) *debounceSet {
	return &debounceSet{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TryAdd claims the slot for key. Returns false if the key is already held
// and its TTL has not expired.
func (d *debounceSet) TryAdd(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiry, ok := d.entries[key]; ok && now.Before(expiry) {
		return false
	}
	d.entries[key] = now.Add(d.ttl)

	// Opportunistic sweep keeps the map from growing with dead entries on
	// pages that churn through many distinct sources.
	if len(d.entries) > 1024 {
		for k, expiry := range d.entries {
			if !now.Before(expiry) {
				delete(d.entries, k)
			}
		}
	}

	return true
}

// Forget frees the slot for key before its TTL expires
func (d *debounceSet) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
}

// Len returns the number of held slots, expired or not
func (d *debounceSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
