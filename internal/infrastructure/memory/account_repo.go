// Package memory holds process-local repositories. They follow the same matching rules as
// the Mongo adapters and back local runs and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
)

type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *AccountRepository) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.ID]; ok {
		return domain.ErrDuplicateDocument
	}
	if r.identityTaken(a.Identity, "") {
		return domain.ErrUsernameTaken
	}
	r.accounts[a.ID] = clone(a)
	return nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.IsDeleted() {
		return nil, domain.ErrUserNotFound
	}
	return clone(a), nil
}

func (r *AccountRepository) FindByIdentity(_ context.Context, identity string) (*domain.Account, error) {
	return r.findOne(func(a *domain.Account) bool {
		return a.Identity == domain.NormalizeIdentity(identity)
	})
}

func (r *AccountRepository) FindByAuthToken(_ context.Context, token string) (*domain.Account, error) {
	return r.findOne(func(a *domain.Account) bool {
		return a.AuthToken != nil && a.AuthToken.Value == token
	})
}

func (r *AccountRepository) IdentityTaken(_ context.Context, identity, exceptID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identityTaken(identity, exceptID), nil
}

func (r *AccountRepository) Activate(_ context.Context, activationToken string, at time.Time) error {
	return r.updateOne(func(a *domain.Account) bool {
		return !a.IsActive() && a.ActivationToken != "" && a.ActivationToken == activationToken
	}, func(a *domain.Account) {
		a.State = domain.ActivationActive
		a.ActivationToken = ""
		a.ActivatedAt = &at
		bump(a, at)
	}, domain.ErrInvalidToken)
}

func (r *AccountRepository) RecordLogin(_ context.Context, id string, expected, at time.Time) error {
	return r.updateAt(id, expected, func(a *domain.Account) {
		a.LastLogin = &at
		a.FailedLoginAttempts = 0
		a.LastFailedLogin = nil
		a.InactivityFlags = nil
		bump(a, at)
	})
}

func (r *AccountRepository) RecordFailedLogin(_ context.Context, id string, at time.Time) error {
	return r.updateByID(id, func(a *domain.Account) {
		a.FailedLoginAttempts++
		a.LastFailedLogin = &at
	})
}

func (r *AccountRepository) SetPassword(_ context.Context, id, passwordHash string, expected, at time.Time) error {
	return r.updateAt(id, expected, func(a *domain.Account) {
		a.PasswordHash = passwordHash
		a.AuthToken = nil
		bump(a, at)
	})
}

func (r *AccountRepository) SetAuthToken(_ context.Context, id string, token domain.AuthToken) error {
	return r.updateByID(id, func(a *domain.Account) {
		a.AuthToken = &token
		bump(a, token.UpdatedAt)
	})
}

func (r *AccountRepository) ExtendAuthToken(_ context.Context, token string, expiresAt, at time.Time) error {
	return r.updateOne(func(a *domain.Account) bool {
		return a.AuthToken != nil && a.AuthToken.Value == token
	}, func(a *domain.Account) {
		a.AuthToken.ExpiresAt = expiresAt
		a.AuthToken.UpdatedAt = at
	}, domain.ErrInvalidToken)
}

func (r *AccountRepository) RemoveAuthToken(_ context.Context, token string) error {
	return r.updateOne(func(a *domain.Account) bool {
		return a.AuthToken != nil && a.AuthToken.Value == token
	}, func(a *domain.Account) {
		a.AuthToken = nil
	}, domain.ErrInvalidToken)
}

func (r *AccountRepository) SetPasswordResetToken(_ context.Context, id string, token domain.Token) error {
	return r.updateByID(id, func(a *domain.Account) {
		a.PasswordResetToken = &token
	})
}

func (r *AccountRepository) ResetPassword(_ context.Context, token, passwordHash string, now time.Time) (string, error) {
	var id string
	err := r.updateOne(func(a *domain.Account) bool {
		t := a.PasswordResetToken
		return t != nil && t.Value == token && t.ValidAt(now)
	}, func(a *domain.Account) {
		id = a.ID
		a.PasswordHash = passwordHash
		a.PasswordResetToken = nil
		a.AuthToken = nil
		a.FailedLoginAttempts = 0
		a.LastFailedLogin = nil
		bump(a, now)
	}, domain.ErrInvalidToken)
	return id, err
}

func (r *AccountRepository) SetEmailUpdateRequest(_ context.Context, id string, req domain.EmailUpdateRequest) error {
	return r.updateByID(id, func(a *domain.Account) {
		a.EmailUpdateRequest = &req
	})
}

func (r *AccountRepository) FindByEmailUpdateToken(_ context.Context, token string, now time.Time) (*domain.Account, error) {
	a, err := r.findOne(func(a *domain.Account) bool {
		req := a.EmailUpdateRequest
		return req != nil && req.Token.Value == token && req.Token.ValidAt(now)
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return a, nil
}

func (r *AccountRepository) ChangeIdentity(_ context.Context, id, token, identity string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.IsDeleted() || a.EmailUpdateRequest == nil ||
		a.EmailUpdateRequest.Token.Value != token || !a.EmailUpdateRequest.Token.ValidAt(now) {
		return domain.ErrInvalidToken
	}
	if r.identityTaken(identity, id) {
		return domain.ErrUsernameTaken
	}
	a.Identity = identity
	a.EmailUpdateRequest = nil
	bump(a, now)
	return nil
}

func (r *AccountRepository) SoftDelete(_ context.Context, id string, expected, at time.Time) error {
	return r.updateAt(id, expected, func(a *domain.Account) {
		*a = domain.Account{ID: id, DeletedAt: &at}
	})
}

func (r *AccountRepository) ScanInactive(ctx context.Context, q repository.InactiveQuery, fn func(*domain.Account) error) error {
	return r.scan(ctx, func(a *domain.Account) bool {
		if a.LastLogin == nil || !a.LastLogin.Before(q.LastLoginBefore) {
			return false
		}
		if q.LastLoginFrom != nil && a.LastLogin.Before(*q.LastLoginFrom) {
			return false
		}
		return q.ExcludeFlag == "" || !a.HasFlag(q.ExcludeFlag)
	}, fn)
}

func (r *AccountRepository) ScanUnactivated(ctx context.Context, createdBefore time.Time, fn func(*domain.Account) error) error {
	return r.scan(ctx, func(a *domain.Account) bool {
		return !a.IsActive() && a.CreatedAt.Before(createdBefore)
	}, fn)
}

func (r *AccountRepository) AddInactivityFlag(_ context.Context, id string, flag domain.InactivityFlag) error {
	return r.updateByID(id, func(a *domain.Account) {
		if !a.HasFlag(flag) {
			a.InactivityFlags = append(a.InactivityFlags, flag)
		}
	})
}

// scan snapshots matching ids first so fn may write back through the repository.
func (r *AccountRepository) scan(ctx context.Context, match func(*domain.Account) bool, fn func(*domain.Account) error) error {
	r.mu.Lock()
	var batch []*domain.Account
	for _, a := range r.accounts {
		if !a.IsDeleted() && match(a) {
			batch = append(batch, clone(a))
		}
	}
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *AccountRepository) findOne(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if !a.IsDeleted() && match(a) {
			return clone(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *AccountRepository) updateByID(id string, apply func(*domain.Account)) error {
	return r.updateOne(func(a *domain.Account) bool { return a.ID == id }, apply, domain.ErrUserNotFound)
}

// updateOne applies to the single live account matching, or returns missing.
func (r *AccountRepository) updateOne(match func(*domain.Account) bool, apply func(*domain.Account), missing error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hit *domain.Account
	for _, a := range r.accounts {
		if a.IsDeleted() || !match(a) {
			continue
		}
		if hit != nil {
			return missing
		}
		hit = a
	}
	if hit == nil {
		return missing
	}
	apply(hit)
	return nil
}

// updateAt applies to the live account id while its marker still equals expected.
func (r *AccountRepository) updateAt(id string, expected time.Time, apply func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.IsDeleted() {
		return domain.ErrUserNotFound
	}
	if !optimistic.Truncate(a.LastUpdated).Equal(optimistic.Truncate(expected)) {
		return domain.ErrVersionConflict
	}
	apply(a)
	return nil
}

func bump(a *domain.Account, at time.Time) {
	a.LastUpdated = optimistic.NextVersion(at, a.LastUpdated)
}

func (r *AccountRepository) identityTaken(identity, exceptID string) bool {
	identity = domain.NormalizeIdentity(identity)
	for _, a := range r.accounts {
		if a.ID != exceptID && !a.IsDeleted() && a.Identity == identity {
			return true
		}
	}
	return false
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	c.InactivityFlags = slices.Clone(a.InactivityFlags)
	if a.AuthToken != nil {
		t := *a.AuthToken
		c.AuthToken = &t
	}
	if a.PasswordResetToken != nil {
		t := *a.PasswordResetToken
		c.PasswordResetToken = &t
	}
	if a.EmailUpdateRequest != nil {
		req := *a.EmailUpdateRequest
		c.EmailUpdateRequest = &req
	}
	return &c
}
