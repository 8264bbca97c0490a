package deadletter

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore keeps records in a map. It backs tests and local development;
// contents do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Write stores the record under key. Existing keys are suffixed rather than
// overwritten, matching the durable stores' insert-only behavior.
func (store *MemoryStore) Write(_ context.Context, key string, record Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	finalKey := key
	for i := 2; ; i++ {
		if _, exists := store.records[finalKey]; !exists {
			break
		}

		finalKey = key + "#" + strconv.Itoa(i)
	}

	store.records[finalKey] = record

	return nil
}

// Get returns the record stored under key.
func (store *MemoryStore) Get(key string) (Record, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	record, ok := store.records[key]

	return record, ok
}

// Len returns the number of stored records.
func (store *MemoryStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return len(store.records)
}

// All returns a snapshot of every stored record.
func (store *MemoryStore) All() []Record {
	store.mu.RLock()
	defer store.mu.RUnlock()

	records := make([]Record, 0, len(store.records))
	for _, record := range store.records {
		records = append(records, record)
	}

	return records
}
