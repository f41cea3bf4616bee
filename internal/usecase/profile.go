package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/jonboulle/clockwork"
)

const ProfileCollection = "api_user"

// ProfileUpdate replaces the non-nil parts of a profile.
type ProfileUpdate struct {
	Name    map[string]any
	Address map[string]any
	DOB     map[string]any
	Email   *string
}

type ProfileUsecase struct {
	store  docstore.Store
	engine *optimistic.Engine
	clock  clockwork.Clock
}

func NewProfileUsecase(store docstore.Store, engine *optimistic.Engine, clock clockwork.Clock) *ProfileUsecase {
	return &ProfileUsecase{store: store, engine: engine, clock: clock}
}

// Get returns the profile, scaffolding an empty versioned one on first read.
func (u *ProfileUsecase) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := u.store.FindOne(ctx, ProfileCollection, userID, &p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, err
	}

	scaffold := &domain.Profile{
		ID:        userID,
		CreatedAt: u.clock.Now().UTC().Truncate(time.Millisecond),
	}
	err = u.engine.Insert(ctx, ProfileCollection, userID, scaffold)
	if errors.Is(err, domain.ErrDuplicateDocument) {
		// another request scaffolded it first
		if err := u.store.FindOne(ctx, ProfileCollection, userID, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	return scaffold, nil
}

// Save writes upd if the stored profile is still at expected. A zero expected uses the
// version just read.
func (u *ProfileUsecase) Save(ctx context.Context, userID string, expected time.Time, upd ProfileUpdate) (*domain.Profile, error) {
	p, err := u.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if expected.IsZero() {
		expected = p.UpdatedAt
	}
	if upd.Name != nil {
		p.Name = upd.Name
	}
	if upd.Address != nil {
		p.Address = upd.Address
	}
	if upd.DOB != nil {
		p.DOB = upd.DOB
	}
	if upd.Email != nil {
		p.Email = domain.NormalizeIdentity(*upd.Email)
	}

	if err := u.engine.Update(ctx, ProfileCollection, userID, expected, p); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(ProfileCollection).Inc()
		}
		return nil, err
	}
	return p, nil
}

func (u *ProfileUsecase) Delete(ctx context.Context, userID string) error {
	if _, err := u.store.DeleteWhere(ctx, ProfileCollection, userID, nil); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
