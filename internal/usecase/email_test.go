package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/memory"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
)

var errStoreDown = errors.New("store unreachable")

func TestIssueEmailChangeToken_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "nia@example.com")
	f.activeAccount(t, "taken@example.com")

	tests := []struct {
		name     string
		identity string
		want     error
	}{
		{"syntax", "not-an-email", domain.ErrInvalidEmail},
		{"unchanged", " NIA@example.com", domain.ErrUsernameUnchanged},
		{"held by another account", "taken@example.com", domain.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.email.IssueEmailChangeToken(ctx, acc.ID, tt.identity); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			stored, _ := f.accounts.FindByID(ctx, acc.ID)
			if stored.EmailUpdateRequest != nil {
				t.Fatalf("token stored after rejection: %+v", stored.EmailUpdateRequest)
			}
		})
	}
}

func TestEmailChange_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "otto@example.com")

	tok, err := f.email.IssueEmailChangeToken(ctx, acc.ID, "Otto.New@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	f.clock.Advance(time.Hour)
	updated, err := f.email.CompleteEmailChange(ctx, tok.Value)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Identity != "otto.new@example.com" || updated.EmailUpdateRequest != nil {
		t.Fatalf("updated = %+v", updated)
	}
	if _, err := f.email.CompleteEmailChange(ctx, tok.Value); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("reused token: want ErrInvalidToken, got %v", err)
	}
}

func TestEmailChange_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "pia@example.com")
	tok, _ := f.email.IssueEmailChangeToken(ctx, acc.ID, "pia2@example.com")

	f.clock.Advance(25 * time.Hour)
	if _, err := f.email.CompleteEmailChange(ctx, tok.Value); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestEmailChange_IdentityClaimedBeforeCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "quinn@example.com")
	tok, err := f.email.IssueEmailChangeToken(ctx, acc.ID, "contested@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// someone registers the address in between
	if _, err := f.account.Register(ctx, "contested@example.com", testPassword); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.email.CompleteEmailChange(ctx, tok.Value); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("want ErrUsernameTaken, got %v", err)
	}
	stored, _ := f.accounts.FindByID(ctx, acc.ID)
	if stored.Identity != "quinn@example.com" {
		t.Errorf("identity changed to %q", stored.Identity)
	}
}

type unreachableEmailTokens struct {
	*memory.AccountRepository
}

func (unreachableEmailTokens) FindByEmailUpdateToken(context.Context, string, time.Time) (*domain.Account, error) {
	return nil, errStoreDown
}

func TestEmailChange_StoreFailureIsNotAnInvalidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	email := usecase.NewEmailUsecase(unreachableEmailTokens{f.accounts}, usecase.NewTokenGenerator(nil), f.clock)

	_, err := email.CompleteEmailChange(ctx, "any")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("want wrapped store error, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidToken) {
		t.Error("store failure reported as an invalid token")
	}
}
