// Package docstore defines the thin document-database boundary used by versioned
// documents: lookups, inserts and predicate-guarded replace/delete keyed by an opaque id.
package docstore

import "context"

// Predicate is a set of top-level field equality conditions evaluated together with the
// document id. A nil Predicate matches on id alone.
type Predicate map[string]any

// Store is satisfied by the Mongo adapter and by MemoryStore.
type Store interface {
	// FindOne decodes the document into out or returns domain.ErrDocumentNotFound.
	FindOne(ctx context.Context, collection, id string, out any) error
	// FindIDs returns the ids of every document matching pred.
	FindIDs(ctx context.Context, collection string, pred Predicate) ([]string, error)
	// Insert returns domain.ErrDuplicateDocument when id is already present.
	Insert(ctx context.Context, collection, id string, doc any) error
	// ReplaceWhere replaces the document when both id and pred match and reports how
	// many documents matched.
	ReplaceWhere(ctx context.Context, collection, id string, pred Predicate, doc any) (int64, error)
	DeleteWhere(ctx context.Context, collection, id string, pred Predicate) (int64, error)
}
