package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
)

const newPassword = "N3wPassword"

func TestPasswordReset_RoundTripSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "hana@example.com")
	authTok, _ := f.auth.IssueAuthToken(ctx, acc.ID, testTTL)

	issue, err := f.password.IssuePasswordResetToken(ctx, "Hana@Example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issue.Token == nil || issue.ActivationToken != "" {
		t.Fatalf("unexpected issue result %+v", issue)
	}
	if got := issue.Token.ExpiresAt.Sub(issue.Token.CreatedAt); got != 24*time.Hour {
		t.Errorf("reset ttl = %v", got)
	}

	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, newPassword); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, newPassword); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("second completion: want ErrInvalidToken, got %v", err)
	}

	if _, err := f.auth.ValidateAuthToken(ctx, authTok.Value, false); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("auth token survived reset: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "hana@example.com", newPassword); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestPasswordReset_ExpiredTokenIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeAccount(t, "ivan@example.com")

	issue, err := f.password.IssuePasswordResetToken(ctx, "ivan@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.clock.Advance(24*time.Hour + time.Second)

	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, newPassword); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestPasswordReset_CompletionClearsFailedLogins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "jo@example.com")
	_, _ = f.auth.Authenticate(ctx, "jo@example.com", "nope")

	issue, _ := f.password.IssuePasswordResetToken(ctx, "jo@example.com")
	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, newPassword); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, _ := f.accounts.FindByID(ctx, acc.ID)
	if stored.FailedLoginAttempts != 0 || stored.PasswordResetToken != nil {
		t.Errorf("stored = %+v", stored)
	}
}

func TestPasswordReset_PendingAccountGetsActivationToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activation, err := f.account.Register(ctx, "kim@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	issue, err := f.password.IssuePasswordResetToken(ctx, "kim@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issue.Token != nil || issue.ActivationToken != activation {
		t.Fatalf("issue = %+v", issue)
	}
}

func TestPasswordReset_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	if _, err := f.password.IssuePasswordResetToken(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestPasswordReset_WeakNewPasswordLeavesTokenUsable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeAccount(t, "lee@example.com")
	issue, _ := f.password.IssuePasswordResetToken(ctx, "lee@example.com")

	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, "short"); !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
	if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, newPassword); err != nil {
		t.Fatalf("token consumed by rejected attempt: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "max@example.com")
	old, _ := f.auth.IssueAuthToken(ctx, acc.ID, testTTL)

	if _, err := f.password.ChangePassword(ctx, acc.ID, "bad", newPassword); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong current: want ErrInvalidCredentials, got %v", err)
	}

	tok, err := f.password.ChangePassword(ctx, acc.ID, testPassword, newPassword)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := f.auth.ValidateAuthToken(ctx, old.Value, false); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("old token still valid")
	}
	if id, err := f.auth.ValidateAuthToken(ctx, tok.Value, false); err != nil || id != acc.ID {
		t.Errorf("new token: id=%q err=%v", id, err)
	}
}

func TestChangePassword_ResetAfterReadConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "ines@example.com")
	issue, err := f.password.IssuePasswordResetToken(ctx, acc.Identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const resetPassword = "Res3tPassword"
	_, password, _ := f.raced(func() {
		if err := f.password.CompletePasswordReset(ctx, issue.Token.Value, resetPassword); err != nil {
			t.Errorf("reset: %v", err)
		}
	})

	if _, err := password.ChangePassword(ctx, acc.ID, testPassword, newPassword); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, acc.Identity, newPassword); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("stale change applied: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, acc.Identity, resetPassword); err != nil {
		t.Errorf("reset password lost: %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Abcdefg1", true},
		{"Abcdef1", false},
		{"abcdefg1", false},
		{"ABCDEFG1", false},
		{"Abcdefgh", false},
	}
	for _, tt := range tests {
		err := usecase.ValidatePassword(tt.password)
		if (err == nil) != tt.ok {
			t.Errorf("ValidatePassword(%q) = %v", tt.password, err)
		}
	}
}
