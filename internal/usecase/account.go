package usecase

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// AccountCollection labels account version conflicts in metrics.
const AccountCollection = "auth_user"

// applicationPurger and profileRemover are the stores an account deletion sweeps.
type applicationPurger interface {
	PurgeUser(ctx context.Context, userID string) error
}

type profileRemover interface {
	Delete(ctx context.Context, userID string) error
}

// AccountStatus is the lookup result: exactly one field is set.
type AccountStatus struct {
	Account *domain.Account
	Deleted *domain.DeletionLog
}

type AccountUsecase struct {
	accounts     repository.AccountRepository
	logs         repository.LogRepository
	applications applicationPurger
	profiles     profileRemover
	email        *EmailUsecase
	tokens       *TokenGenerator
	clock        clockwork.Clock
	logger       *slog.Logger
}

func NewAccountUsecase(
	accounts repository.AccountRepository,
	logs repository.LogRepository,
	applications applicationPurger,
	profiles profileRemover,
	email *EmailUsecase,
	tokens *TokenGenerator,
	clock clockwork.Clock,
	logger *slog.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		accounts:     accounts,
		logs:         logs,
		applications: applications,
		profiles:     profiles,
		email:        email,
		tokens:       tokens,
		clock:        clock,
		logger:       logger.With("component", "account"),
	}
}

// Register creates a pending account and returns its activation token.
func (u *AccountUsecase) Register(ctx context.Context, identity, password string) (string, error) {
	identity = domain.NormalizeIdentity(identity)
	if !u.email.ValidIdentity(identity) {
		return "", domain.ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	taken, err := u.accounts.IdentityTaken(ctx, identity, "")
	if err != nil {
		return "", fmt.Errorf("check identity: %w", err)
	}
	if taken {
		return "", domain.ErrUsernameTaken
	}

	activation, err := u.tokens.Generate(authTokenBytes)
	if err != nil {
		return "", err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	acc, err := domain.NewAccount(uuid.NewString(), identity, hash, activation, u.clock.Now())
	if err != nil {
		return "", err
	}
	if err := u.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return "", err
		}
		return "", fmt.Errorf("create account: %w", err)
	}
	u.logger.InfoContext(ctx, "account registered", "account_id", acc.ID)
	return activation, nil
}

func (u *AccountUsecase) Activate(ctx context.Context, activationToken string) error {
	if activationToken == "" {
		return domain.ErrInvalidToken
	}
	return u.accounts.Activate(ctx, activationToken, u.clock.Now())
}

// Delete removes the account's applications and profile, soft-deletes the account record
// and then writes the hashed-identity audit entry. The soft delete is guarded by the
// marker read here; once it lands a retry finds no account, so the entry is written once.
func (u *AccountUsecase) Delete(ctx context.Context, accountID string, reason domain.DeletionReason) error {
	acc, err := u.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := u.applications.PurgeUser(ctx, acc.ID); err != nil {
		return fmt.Errorf("purge applications: %w", err)
	}
	if err := u.profiles.Delete(ctx, acc.ID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	now := u.clock.Now()
	if err := u.accounts.SoftDelete(ctx, acc.ID, acc.LastUpdated, now); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(AccountCollection).Inc()
		}
		return fmt.Errorf("soft delete: %w", err)
	}
	entry := domain.DeletionLog{
		IdentityHash: IdentityHash(acc.Identity),
		Type:         domain.LogTypeAccountDeleted,
		Reason:       reason,
		LoggedAt:     now,
	}
	if err := u.logs.AddDeletion(ctx, entry); err != nil {
		u.logger.ErrorContext(ctx, "account deleted without audit entry", "account_id", acc.ID, "error", err)
		return fmt.Errorf("write deletion log: %w", err)
	}
	u.logger.InfoContext(ctx, "account deleted", "account_id", acc.ID, "reason", reason)
	return nil
}

// LookupByIdentity finds a live account or, failing that, the audit entry left by its
// deletion.
func (u *AccountUsecase) LookupByIdentity(ctx context.Context, identity string) (*AccountStatus, error) {
	acc, err := u.accounts.FindByIdentity(ctx, identity)
	if err == nil {
		return &AccountStatus{Account: acc}, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("find account: %w", err)
	}

	entry, err := u.logs.FindByIdentityHash(ctx, IdentityHash(identity))
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find deletion log: %w", err)
	}
	return &AccountStatus{Deleted: entry}, nil
}

// IdentityHash is the hex SHA-512 of the normalised identity, the only trace of an
// identity kept after deletion.
func IdentityHash(identity string) string {
	sum := sha512.Sum512([]byte(domain.NormalizeIdentity(identity)))
	return hex.EncodeToString(sum[:])
}

// DeletedAt is when the audit entry was written.
func (s *AccountStatus) DeletedAt() time.Time {
	if s.Deleted == nil {
		return time.Time{}
	}
	return s.Deleted.LoggedAt
}
