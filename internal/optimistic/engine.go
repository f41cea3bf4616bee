// Package optimistic applies compare-and-swap writes to versioned documents. The version
// marker is a last-modified timestamp stored at millisecond precision.
package optimistic

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/jonboulle/clockwork"
)

const DefaultVersionField = "updatedAt"

// Versioned is any document carrying its own version marker.
type Versioned interface {
	Version() time.Time
	SetVersion(time.Time)
}

type Engine struct {
	store        docstore.Store
	clock        clockwork.Clock
	versionField string
}

type Option func(*Engine)

// WithVersionField names the stored field holding the marker.
func WithVersionField(field string) Option {
	return func(e *Engine) { e.versionField = field }
}

func New(store docstore.Store, clock clockwork.Clock, opts ...Option) *Engine {
	e := &Engine{store: store, clock: clock, versionField: DefaultVersionField}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Insert stamps the initial version marker and stores doc. Documents created here can be
// updated through Update straight away.
func (e *Engine) Insert(ctx context.Context, collection, id string, doc Versioned) error {
	doc.SetVersion(NextVersion(e.clock.Now(), time.Time{}))
	if err := e.store.Insert(ctx, collection, id, doc); err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update writes doc only if the stored marker still equals expected, moving the marker
// forward in the same write. Zero or multiple matches yield domain.ErrVersionConflict.
// Update never retries; on conflict doc keeps its previous marker.
func (e *Engine) Update(ctx context.Context, collection, id string, expected time.Time, doc Versioned) error {
	previous := doc.Version()
	doc.SetVersion(NextVersion(e.clock.Now(), expected))

	n, err := e.store.ReplaceWhere(ctx, collection, id, docstore.Predicate{e.versionField: expected.UTC()}, doc)
	if err != nil {
		doc.SetVersion(previous)
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n != 1 {
		doc.SetVersion(previous)
		return domain.ErrVersionConflict
	}
	return nil
}

// NextVersion is now at millisecond precision, nudged past expected so that two writes
// inside the same millisecond still produce distinct markers.
func NextVersion(now, expected time.Time) time.Time {
	v := Truncate(now)
	if !v.After(Truncate(expected)) {
		v = Truncate(expected).Add(time.Millisecond)
	}
	return v
}

// Truncate brings t to the precision the marker is stored at.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
