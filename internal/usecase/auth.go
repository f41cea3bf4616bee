package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"github.com/jonboulle/clockwork"
)

const DefaultAuthTokenTTL = 75 * time.Minute

// AuthUsecase owns the bearer token lifecycle. Each account holds at most one auth token;
// issuing a new one overwrites the previous value.
type AuthUsecase struct {
	accounts repository.AccountRepository
	tokens   *TokenGenerator
	clock    clockwork.Clock
	ttl      time.Duration
	logger   *slog.Logger
}

func NewAuthUsecase(accounts repository.AccountRepository, tokens *TokenGenerator, clock clockwork.Clock, ttl time.Duration, logger *slog.Logger) *AuthUsecase {
	if ttl <= 0 {
		ttl = DefaultAuthTokenTTL
	}
	return &AuthUsecase{
		accounts: accounts,
		tokens:   tokens,
		clock:    clock,
		ttl:      ttl,
		logger:   logger.With("component", "auth"),
	}
}

// Authenticate checks identity and password. A successful login resets the failed-login
// counter and the inactivity flags before a new token is issued.
func (u *AuthUsecase) Authenticate(ctx context.Context, identity, password string) (domain.AuthToken, error) {
	acc, err := u.accounts.FindByIdentity(ctx, identity)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.AuthToken{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("find account: %w", err)
	}
	if !acc.IsActive() {
		return domain.AuthToken{}, domain.ErrAccountNotActive
	}

	now := u.clock.Now()
	if !checkPassword(acc.PasswordHash, password) {
		if err := u.accounts.RecordFailedLogin(ctx, acc.ID, now); err != nil {
			u.logger.WarnContext(ctx, "record failed login", "account_id", acc.ID, "error", err)
		}
		return domain.AuthToken{}, domain.ErrInvalidCredentials
	}

	if err := u.accounts.RecordLogin(ctx, acc.ID, acc.LastUpdated, now); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(AccountCollection).Inc()
			return domain.AuthToken{}, err
		}
		return domain.AuthToken{}, fmt.Errorf("record login: %w", err)
	}
	return u.IssueAuthToken(ctx, acc.ID, u.ttl)
}

// IssueAuthToken generates and stores a new token for the account, replacing any
// previous one.
func (u *AuthUsecase) IssueAuthToken(ctx context.Context, accountID string, ttl time.Duration) (domain.AuthToken, error) {
	value, err := u.tokens.Generate(authTokenBytes)
	if err != nil {
		u.logger.ErrorContext(ctx, "token generation failed", "error", err)
		return domain.AuthToken{}, err
	}
	token, err := domain.NewAuthToken(value, u.clock.Now(), ttl)
	if err != nil {
		return domain.AuthToken{}, err
	}
	if err := u.accounts.SetAuthToken(ctx, accountID, token); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.AuthToken{}, err
		}
		return domain.AuthToken{}, fmt.Errorf("store auth token: %w", err)
	}
	metrics.AuthTokensIssuedTotal.Inc()
	return token, nil
}

// ValidateAuthToken returns the id of the account holding token. When extend is set the
// expiry is pushed to now plus the configured TTL.
func (u *AuthUsecase) ValidateAuthToken(ctx context.Context, token string, extend bool) (string, error) {
	id, err := u.validate(ctx, token, extend)
	switch {
	case err == nil:
		metrics.AuthTokenValidationsTotal.WithLabelValues("valid").Inc()
	case errors.Is(err, domain.ErrInvalidToken):
		metrics.AuthTokenValidationsTotal.WithLabelValues("invalid").Inc()
	default:
		metrics.AuthTokenValidationsTotal.WithLabelValues("error").Inc()
	}
	return id, err
}

func (u *AuthUsecase) validate(ctx context.Context, token string, extend bool) (string, error) {
	if token == "" {
		return "", domain.ErrInvalidToken
	}
	acc, err := u.accounts.FindByAuthToken(ctx, token)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("find by token: %w", err)
	}

	now := u.clock.Now()
	if acc.AuthToken == nil || !acc.AuthToken.ValidAt(now) {
		return "", domain.ErrInvalidToken
	}

	if extend {
		if err := u.accounts.ExtendAuthToken(ctx, token, now.Add(u.ttl), now); err != nil {
			if errors.Is(err, domain.ErrInvalidToken) {
				return "", err
			}
			return "", fmt.Errorf("extend token: %w", err)
		}
	}
	return acc.ID, nil
}

// RevokeAuthToken deletes the token. Revoking an unknown token is domain.ErrInvalidToken.
func (u *AuthUsecase) RevokeAuthToken(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}
	return u.accounts.RemoveAuthToken(ctx, token)
}
