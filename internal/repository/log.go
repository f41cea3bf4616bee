package repository

import (
	"context"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

type LogRepository interface {
	AddDeletion(ctx context.Context, entry domain.DeletionLog) error
	// FindByIdentityHash returns domain.ErrDocumentNotFound when no entry exists.
	FindByIdentityHash(ctx context.Context, identityHash string) (*domain.DeletionLog, error)
}
