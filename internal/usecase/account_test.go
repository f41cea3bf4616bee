package usecase_test

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
)

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeAccount(t, "ruth@example.com")

	tests := []struct {
		name     string
		identity string
		password string
		want     error
	}{
		{"bad email", "ruth", testPassword, domain.ErrInvalidEmail},
		{"weak password", "new@example.com", "password", domain.ErrInvalidPassword},
		{"identity taken", "RUTH@example.com", testPassword, domain.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.account.Register(ctx, tt.identity, tt.password); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestActivate_TokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activation, _ := f.account.Register(ctx, "sam@example.com", testPassword)

	if err := f.account.Activate(ctx, activation); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := f.account.Activate(ctx, activation); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("second activation: want ErrInvalidToken, got %v", err)
	}
	acc, _ := f.accounts.FindByIdentity(ctx, "sam@example.com")
	if !acc.IsActive() || acc.ActivatedAt == nil {
		t.Errorf("account not active: %+v", acc)
	}
}

func TestDelete_PurgesAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "tia@example.com")

	app, err := f.apps.Create(ctx, acc.ID)
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	if _, err := f.profiles.Get(ctx, acc.ID); err != nil {
		t.Fatalf("scaffold profile: %v", err)
	}

	if err := f.account.Delete(ctx, acc.ID, domain.ReasonUserRequested); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.accounts.FindByID(ctx, acc.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("account still found: %v", err)
	}
	if _, err := f.apps.Fetch(ctx, acc.ID, app.ID); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Errorf("application still found: %v", err)
	}
	var tomb map[string]any
	if err := f.store.FindOne(ctx, usecase.ApplicationCollection, app.ID, &tomb); err != nil {
		t.Fatalf("application id not retained: %v", err)
	}
	if len(tomb) != 2 {
		t.Errorf("deleted application keeps %v", tomb)
	}
	var p domain.Profile
	if err := f.store.FindOne(ctx, usecase.ProfileCollection, acc.ID, &p); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("profile still present: %v", err)
	}

	entries := f.logs.Entries()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d", len(entries))
	}
	sum := sha512.Sum512([]byte("tia@example.com"))
	if entries[0].IdentityHash != hex.EncodeToString(sum[:]) {
		t.Errorf("identity hash = %s", entries[0].IdentityHash)
	}
	if entries[0].Type != domain.LogTypeAccountDeleted || entries[0].Reason != domain.ReasonUserRequested {
		t.Errorf("entry = %+v", entries[0])
	}

	// the identity is free again
	if _, err := f.account.Register(ctx, "tia@example.com", testPassword); err != nil {
		t.Errorf("re-register after deletion: %v", err)
	}
}

func TestDelete_LoginAfterReadKeepsAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "lena@example.com")

	_, _, account := f.raced(func() {
		if _, err := f.auth.Authenticate(ctx, acc.Identity, testPassword); err != nil {
			t.Errorf("login: %v", err)
		}
	})

	if err := account.Delete(ctx, acc.ID, domain.ReasonExpired); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
	if _, err := f.accounts.FindByID(ctx, acc.ID); err != nil {
		t.Errorf("account removed: %v", err)
	}
	if n := len(f.logs.Entries()); n != 0 {
		t.Errorf("log entries = %d, want none for a failed deletion", n)
	}
}

func TestDelete_RetryWritesOneAuditEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "ravi@example.com")

	if err := f.account.Delete(ctx, acc.ID, domain.ReasonExpired); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.account.Delete(ctx, acc.ID, domain.ReasonExpired); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("retry: want ErrUserNotFound, got %v", err)
	}
	if n := len(f.logs.Entries()); n != 1 {
		t.Errorf("log entries = %d", n)
	}
}

func TestLookupByIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.activeAccount(t, "uma@example.com")

	st, err := f.account.LookupByIdentity(ctx, "uma@example.com")
	if err != nil || st.Account == nil || st.Account.ID != acc.ID {
		t.Fatalf("live lookup: %+v %v", st, err)
	}

	if err := f.account.Delete(ctx, acc.ID, domain.ReasonExpired); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st, err = f.account.LookupByIdentity(ctx, " Uma@Example.com")
	if err != nil {
		t.Fatalf("deleted lookup: %v", err)
	}
	if st.Deleted == nil || st.Deleted.Reason != domain.ReasonExpired || !st.DeletedAt().Equal(epoch) {
		t.Errorf("deleted status = %+v", st.Deleted)
	}

	if _, err := f.account.LookupByIdentity(ctx, "never@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown: want ErrUserNotFound, got %v", err)
	}
}
