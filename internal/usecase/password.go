package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// ValidatePassword enforces the password policy: at least eight characters with one
// digit, one lower case and one upper case letter.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.ErrInvalidPassword
	}
	var digit, lower, upper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	if !digit || !lower || !upper {
		return domain.ErrInvalidPassword
	}
	return nil
}

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ResetIssue is the outcome of a reset request. Pending accounts get their activation
// token back instead of a reset token, so exactly one field is set.
type ResetIssue struct {
	Token           *domain.Token
	ActivationToken string
}

type PasswordUsecase struct {
	accounts repository.AccountRepository
	auth     *AuthUsecase
	tokens   *TokenGenerator
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewPasswordUsecase(accounts repository.AccountRepository, auth *AuthUsecase, tokens *TokenGenerator, clock clockwork.Clock, logger *slog.Logger) *PasswordUsecase {
	return &PasswordUsecase{
		accounts: accounts,
		auth:     auth,
		tokens:   tokens,
		clock:    clock,
		logger:   logger.With("component", "password"),
	}
}

// IssuePasswordResetToken stores a 24 hour reset token on the account holding identity.
func (u *PasswordUsecase) IssuePasswordResetToken(ctx context.Context, identity string) (*ResetIssue, error) {
	acc, err := u.accounts.FindByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return &ResetIssue{ActivationToken: acc.ActivationToken}, nil
	}

	value, err := u.tokens.Generate(secretTokenBytes)
	if err != nil {
		return nil, err
	}
	token, err := domain.NewToken(value, u.clock.Now(), domain.PasswordResetTokenTTL)
	if err != nil {
		return nil, err
	}
	if err := u.accounts.SetPasswordResetToken(ctx, acc.ID, token); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}
	return &ResetIssue{Token: &token}, nil
}

// CompletePasswordReset swaps the credential and clears both the reset and auth tokens.
// Wrong and expired tokens are both reported as domain.ErrInvalidToken.
func (u *PasswordUsecase) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	id, err := u.accounts.ResetPassword(ctx, token, hash, u.clock.Now())
	if err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "password reset", "account_id", id)
	return nil
}

// ChangePassword verifies the current credential, replaces it and returns a fresh auth
// token; every previously issued token stops working.
func (u *PasswordUsecase) ChangePassword(ctx context.Context, accountID, current, newPassword string) (domain.AuthToken, error) {
	acc, err := u.accounts.FindByID(ctx, accountID)
	if err != nil {
		return domain.AuthToken{}, err
	}
	if !checkPassword(acc.PasswordHash, current) {
		return domain.AuthToken{}, domain.ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return domain.AuthToken{}, err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return domain.AuthToken{}, err
	}
	// A reset or login that lands after FindByID moves the marker and fails this write.
	if err := u.accounts.SetPassword(ctx, acc.ID, hash, acc.LastUpdated, u.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(AccountCollection).Inc()
			return domain.AuthToken{}, err
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.AuthToken{}, err
		}
		return domain.AuthToken{}, fmt.Errorf("set password: %w", err)
	}
	return u.auth.IssueAuthToken(ctx, acc.ID, u.auth.ttl)
}
