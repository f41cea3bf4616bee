package lock

import (
	"context"
	"sync"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

// MemoryBackend holds lock records in process, for single-instance runs and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]domain.LockRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]domain.LockRecord)}
}

func (b *MemoryBackend) TryAcquire(_ context.Context, rec domain.LockRecord) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.records[rec.Name]; ok && !cur.Expired(rec.AcquiredAt) {
		return false, nil
	}
	b.records[rec.Name] = rec
	return true, nil
}

// Record returns the stored record for the full lock key.
func (b *MemoryBackend) Record(key string) (domain.LockRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	return rec, ok
}
