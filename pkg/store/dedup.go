package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
)

// DedupCache holds the two durable dedup sets (seen URLs and seen
// fingerprints) together with their in-memory mirrors. A key is present iff
// a download for it has been accepted and not subsequently rolled back.
//
// Every mutation goes through the cache's single mutex and writes the whole
// set before returning, so two near-simultaneous commits for different keys
// cannot lose an update to a read-modify-write race against the store.
type DedupCache struct {
	store  Store
	logger logger.Logger

	mu     sync.Mutex
	urls   map[string]struct{}
	hashes map[string]struct{}
}

// NewDedupCache creates an unloaded cache over the given store. Call Load
// before serving admission checks.
func NewDedupCache(s Store, log logger.Logger) *DedupCache {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DedupCache{
		store:  s,
		logger: log,
		urls:   make(map[string]struct{}),
		hashes: make(map[string]struct{}),
	}
}

// Load reads both durable sets into the in-memory mirrors. On any read or
// decode failure the mirrors initialize empty and the error is returned for
// logging only: fail-open, the worst case is a redundant download.
func (c *DedupCache) Load() error {
	urls, urlErr := c.loadSet(DownloadedURLsKey)
	hashes, hashErr := c.loadSet(DownloadedHashesKey)

	c.mu.Lock()
	c.urls = urls
	c.hashes = hashes
	c.mu.Unlock()

	if urlErr != nil {
		return urlErr
	}
	return hashErr
}

func (c *DedupCache) loadSet(key string) (map[string]struct{}, error) {
	set := make(map[string]struct{})

	data, ok, err := c.store.Get(key)
	if err != nil {
		return set, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok {
		return set, nil
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return set, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set, nil
}

// Contains reports whether key has a committed download
func (c *DedupCache) Contains(keyType models.KeyType, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.setFor(keyType)[key]
	return ok
}

// Add inserts key into its durable set. A no-op if already present. The
// mirror is updated even when the durable write fails, so admission keeps
// working; the error is surfaced for logging.
func (c *DedupCache) Add(keyType models.KeyType, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.setFor(keyType)
	if _, ok := set[key]; ok {
		return nil
	}
	set[key] = struct{}{}

	return c.persistLocked(keyType)
}

// Remove deletes key from its durable set. Removal of an absent key is a
// no-op. Used by the rollback path after an interrupted download.
func (c *DedupCache) Remove(keyType models.KeyType, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.setFor(keyType)
	if _, ok := set[key]; !ok {
		return nil
	}
	delete(set, key)

	return c.persistLocked(keyType)
}

// Size returns the number of committed keys of the given type
func (c *DedupCache) Size(keyType models.KeyType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.setFor(keyType))
}

func (c *DedupCache) setFor(keyType models.KeyType) map[string]struct{} {
	if keyType == models.KeyFingerprint {
		return c.hashes
	}
	return c.urls
}

// persistLocked writes the whole set for keyType. Caller holds c.mu; the
// store write happening under the lock is what serializes concurrent
// commits for different keys.
func (c *DedupCache) persistLocked(keyType models.KeyType) error {
	storageKey := DownloadedURLsKey
	if keyType == models.KeyFingerprint {
		storageKey = DownloadedHashesKey
	}

	set := c.setFor(keyType)
	entries := make([]string, 0, len(set))
	for e := range set {
		entries = append(entries, e)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", storageKey, err)
	}

	if err := c.store.Set(storageKey, data); err != nil {
		return fmt.Errorf("failed to persist %s: %w", storageKey, err)
	}
	return nil
}
