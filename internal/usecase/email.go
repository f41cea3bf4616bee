package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

type EmailUsecase struct {
	accounts repository.AccountRepository
	tokens   *TokenGenerator
	clock    clockwork.Clock
	validate *validator.Validate
}

func NewEmailUsecase(accounts repository.AccountRepository, tokens *TokenGenerator, clock clockwork.Clock) *EmailUsecase {
	return &EmailUsecase{
		accounts: accounts,
		tokens:   tokens,
		clock:    clock,
		validate: validator.New(),
	}
}

// ValidIdentity reports whether identity is a syntactically valid email address.
func (u *EmailUsecase) ValidIdentity(identity string) bool {
	return u.validate.Var(identity, "required,email") == nil
}

// IssueEmailChangeToken stores a 24 hour token with the pending identity. Nothing is
// stored when the identity is invalid, unchanged or already held by another account.
func (u *EmailUsecase) IssueEmailChangeToken(ctx context.Context, accountID, newIdentity string) (domain.Token, error) {
	newIdentity = domain.NormalizeIdentity(newIdentity)
	if !u.ValidIdentity(newIdentity) {
		return domain.Token{}, domain.ErrInvalidEmail
	}

	acc, err := u.accounts.FindByID(ctx, accountID)
	if err != nil {
		return domain.Token{}, err
	}
	if acc.Identity == newIdentity {
		return domain.Token{}, domain.ErrUsernameUnchanged
	}
	taken, err := u.accounts.IdentityTaken(ctx, newIdentity, acc.ID)
	if err != nil {
		return domain.Token{}, fmt.Errorf("check identity: %w", err)
	}
	if taken {
		return domain.Token{}, domain.ErrUsernameTaken
	}

	value, err := u.tokens.Generate(secretTokenBytes)
	if err != nil {
		return domain.Token{}, err
	}
	token, err := domain.NewToken(value, u.clock.Now(), domain.EmailChangeTokenTTL)
	if err != nil {
		return domain.Token{}, err
	}
	req := domain.EmailUpdateRequest{Token: token, Email: newIdentity}
	if err := u.accounts.SetEmailUpdateRequest(ctx, acc.ID, req); err != nil {
		return domain.Token{}, fmt.Errorf("store email change: %w", err)
	}
	return token, nil
}

// CompleteEmailChange applies the pending identity. The uniqueness check is repeated
// because another account may have claimed the identity since the token was issued.
func (u *EmailUsecase) CompleteEmailChange(ctx context.Context, token string) (*domain.Account, error) {
	now := u.clock.Now()
	acc, err := u.accounts.FindByEmailUpdateToken(ctx, token, now)
	if errors.Is(err, domain.ErrInvalidToken) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("find email change: %w", err)
	}
	newIdentity := acc.EmailUpdateRequest.Email

	taken, err := u.accounts.IdentityTaken(ctx, newIdentity, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	if err := u.accounts.ChangeIdentity(ctx, acc.ID, token, newIdentity, now); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) || errors.Is(err, domain.ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("change identity: %w", err)
	}
	return u.accounts.FindByID(ctx, acc.ID)
}
