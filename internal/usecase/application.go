package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/jonboulle/clockwork"
)

const (
	ApplicationCollection = "lpa"

	applicationIDDigits   = 11
	applicationIDAttempts = 5
	purgeConflictRetries  = 3
)

// ApplicationPatch carries the fields a caller may change. Nil fields are left alone.
type ApplicationPatch struct {
	Document         map[string]any
	Metadata         map[string]any
	Payment          map[string]any
	RepeatCaseNumber *int64
	Lock             bool
}

// deletedApplication is what remains of a deleted application: its id and version.
type deletedApplication struct {
	ID        string    `bson:"_id"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *deletedApplication) Version() time.Time     { return d.UpdatedAt }
func (d *deletedApplication) SetVersion(t time.Time) { d.UpdatedAt = t }

type ApplicationUsecase struct {
	store  docstore.Store
	engine *optimistic.Engine
	tokens *TokenGenerator
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewApplicationUsecase(store docstore.Store, engine *optimistic.Engine, tokens *TokenGenerator, clock clockwork.Clock, logger *slog.Logger) *ApplicationUsecase {
	return &ApplicationUsecase{
		store:  store,
		engine: engine,
		tokens: tokens,
		clock:  clock,
		logger: logger.With("component", "application"),
	}
}

// Create allocates an unused random 11 digit id and stores an empty application.
func (u *ApplicationUsecase) Create(ctx context.Context, userID string) (*domain.Application, error) {
	for range applicationIDAttempts {
		id, err := u.tokens.Digits(applicationIDDigits)
		if err != nil {
			return nil, err
		}
		app := &domain.Application{
			ID:        id,
			UserID:    userID,
			StartedAt: u.clock.Now().UTC().Truncate(time.Millisecond),
		}
		err = u.engine.Insert(ctx, ApplicationCollection, id, app)
		if errors.Is(err, domain.ErrDuplicateDocument) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return app, nil
	}
	return nil, errors.New("no free application id")
}

// Fetch returns the application only when it belongs to userID.
func (u *ApplicationUsecase) Fetch(ctx context.Context, userID, id string) (*domain.Application, error) {
	var app domain.Application
	err := u.store.FindOne(ctx, ApplicationCollection, id, &app)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	if app.UserID == "" || app.UserID != userID {
		return nil, domain.ErrApplicationNotFound
	}
	return &app, nil
}

// Patch applies p to the application if its stored version still equals expected. A zero
// expected version means "the version just read" (plain read-modify-write). Locked
// applications are read only.
func (u *ApplicationUsecase) Patch(ctx context.Context, userID, id string, expected time.Time, p ApplicationPatch) (*domain.Application, error) {
	app, err := u.Fetch(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if app.Locked {
		return nil, domain.ErrApplicationLocked
	}
	if expected.IsZero() {
		expected = app.UpdatedAt
	}

	if p.Document != nil {
		app.Document = p.Document
	}
	if p.Metadata != nil {
		app.Metadata = p.Metadata
	}
	if p.Payment != nil {
		app.Payment = p.Payment
	}
	if p.RepeatCaseNumber != nil {
		app.RepeatCaseNumber = p.RepeatCaseNumber
	}
	if p.Lock {
		at := u.clock.Now().UTC().Truncate(time.Millisecond)
		app.Locked = true
		app.LockedAt = &at
	}

	if err := u.engine.Update(ctx, ApplicationCollection, id, expected, app); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(ApplicationCollection).Inc()
		}
		return nil, err
	}
	return app, nil
}

// Delete reduces the application to its id and a fresh version marker.
func (u *ApplicationUsecase) Delete(ctx context.Context, userID, id string) error {
	app, err := u.Fetch(ctx, userID, id)
	if err != nil {
		return err
	}
	tomb := &deletedApplication{ID: id, UpdatedAt: app.UpdatedAt}
	if err := u.engine.Update(ctx, ApplicationCollection, id, app.UpdatedAt, tomb); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(ApplicationCollection).Inc()
		}
		return err
	}
	return nil
}

// DeleteAll deletes every application owned by userID and returns how many went.
func (u *ApplicationUsecase) DeleteAll(ctx context.Context, userID string) (int, error) {
	ids, err := u.store.FindIDs(ctx, ApplicationCollection, docstore.Predicate{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("list applications: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := u.deleteWithRetry(ctx, userID, id); err != nil {
			return deleted, fmt.Errorf("delete application %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

// PurgeUser is DeleteAll for account deletion.
func (u *ApplicationUsecase) PurgeUser(ctx context.Context, userID string) error {
	n, err := u.DeleteAll(ctx, userID)
	if n > 0 {
		u.logger.InfoContext(ctx, "applications purged", "user_id", userID, "count", n)
	}
	return err
}

// deleteWithRetry reloads on conflict: a deletion is valid against any version, so a
// fresh read is all it needs.
func (u *ApplicationUsecase) deleteWithRetry(ctx context.Context, userID, id string) error {
	var err error
	for range purgeConflictRetries {
		err = u.Delete(ctx, userID, id)
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return err
}
