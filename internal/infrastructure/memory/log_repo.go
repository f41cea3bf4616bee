package memory

import (
	"context"
	"sync"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
)

type LogRepository struct {
	mu      sync.Mutex
	entries []domain.DeletionLog
}

var _ repository.LogRepository = (*LogRepository)(nil)

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

func (r *LogRepository) AddDeletion(_ context.Context, entry domain.DeletionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// FindByIdentityHash returns the most recent entry for the hash.
func (r *LogRepository) FindByIdentityHash(_ context.Context, identityHash string) (*domain.DeletionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].IdentityHash == identityHash {
			e := r.entries[i]
			return &e, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

// Entries returns a copy of everything logged so far.
func (r *LogRepository) Entries() []domain.DeletionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DeletionLog(nil), r.entries...)
}
