package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

// InactiveQuery selects non-deleted accounts by last-login recency.
type InactiveQuery struct {
	LastLoginBefore time.Time  // exclusive upper bound
	LastLoginFrom   *time.Time // inclusive lower bound, nil = unbounded
	ExcludeFlag     domain.InactivityFlag
}

// AccountRepository owns the account collection. Every method that targets a token
// matches on the token value inside the same write, so a stale or replaced token simply
// fails to match instead of racing a separate read.
//
// last_updated is the account's version marker. Writes that change credentials, identity,
// activation or the login state move it strictly forward. Methods taking expected write
// only while the stored marker still equals it and otherwise return
// domain.ErrVersionConflict, or domain.ErrUserNotFound when the account is gone.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByIdentity(ctx context.Context, identity string) (*domain.Account, error)
	FindByAuthToken(ctx context.Context, token string) (*domain.Account, error)
	// IdentityTaken reports whether a non-deleted account other than exceptID holds identity.
	IdentityTaken(ctx context.Context, identity, exceptID string) (bool, error)

	Activate(ctx context.Context, activationToken string, at time.Time) error
	RecordLogin(ctx context.Context, id string, expected, at time.Time) error
	RecordFailedLogin(ctx context.Context, id string, at time.Time) error
	SetPassword(ctx context.Context, id, passwordHash string, expected, at time.Time) error

	// SetAuthToken overwrites any prior auth token for the account.
	SetAuthToken(ctx context.Context, id string, token domain.AuthToken) error
	ExtendAuthToken(ctx context.Context, token string, expiresAt, at time.Time) error
	RemoveAuthToken(ctx context.Context, token string) error

	SetPasswordResetToken(ctx context.Context, id string, token domain.Token) error
	// ResetPassword applies the new hash only when exactly one account holds token
	// with expiresAt >= now; otherwise domain.ErrInvalidToken.
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (string, error)

	SetEmailUpdateRequest(ctx context.Context, id string, req domain.EmailUpdateRequest) error
	FindByEmailUpdateToken(ctx context.Context, token string, now time.Time) (*domain.Account, error)
	// ChangeIdentity swaps identity and clears the pending request while the token still
	// matches. A unique-identity clash surfaces as domain.ErrUsernameTaken.
	ChangeIdentity(ctx context.Context, id, token, identity string, now time.Time) error

	SoftDelete(ctx context.Context, id string, expected, at time.Time) error

	ScanInactive(ctx context.Context, q InactiveQuery, fn func(*domain.Account) error) error
	ScanUnactivated(ctx context.Context, createdBefore time.Time, fn func(*domain.Account) error) error
	AddInactivityFlag(ctx context.Context, id string, flag domain.InactivityFlag) error
}
