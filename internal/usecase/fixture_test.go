package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/memory"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/jonboulle/clockwork"
)

const (
	testPassword = "Sup3rSecret"
	testTTL      = time.Hour
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clock    *clockwork.FakeClock
	accounts *memory.AccountRepository
	logs     *memory.LogRepository
	store    *docstore.MemoryStore

	auth     *usecase.AuthUsecase
	password *usecase.PasswordUsecase
	email    *usecase.EmailUsecase
	account  *usecase.AccountUsecase
	apps     *usecase.ApplicationUsecase
	profiles *usecase.ProfileUsecase
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clockwork.NewFakeClockAt(epoch),
		accounts: memory.NewAccountRepository(),
		logs:     memory.NewLogRepository(),
		store:    docstore.NewMemoryStore(),
	}
	logger := discardLogger()
	tokens := usecase.NewTokenGenerator(nil)
	engine := optimistic.New(f.store, f.clock)

	f.auth = usecase.NewAuthUsecase(f.accounts, tokens, f.clock, testTTL, logger)
	f.password = usecase.NewPasswordUsecase(f.accounts, f.auth, tokens, f.clock, logger)
	f.email = usecase.NewEmailUsecase(f.accounts, tokens, f.clock)
	f.apps = usecase.NewApplicationUsecase(f.store, engine, tokens, f.clock, logger)
	f.profiles = usecase.NewProfileUsecase(f.store, engine, f.clock)
	f.account = usecase.NewAccountUsecase(f.accounts, f.logs, f.apps, f.profiles, f.email, tokens, f.clock, logger)
	return f
}

// activeAccount registers and activates identity with testPassword.
func (f *fixture) activeAccount(t *testing.T, identity string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	activation, err := f.account.Register(ctx, identity, testPassword)
	if err != nil {
		t.Fatalf("register %s: %v", identity, err)
	}
	if err := f.account.Activate(ctx, activation); err != nil {
		t.Fatalf("activate %s: %v", identity, err)
	}
	acc, err := f.accounts.FindByIdentity(ctx, identity)
	if err != nil {
		t.Fatalf("find %s: %v", identity, err)
	}
	return acc
}

// racedAccounts runs afterRead once, straight after the first account read returns, so
// the caller continues with a copy that another writer has already moved past.
type racedAccounts struct {
	*memory.AccountRepository
	afterRead func()
	once      sync.Once
}

func (r *racedAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := r.AccountRepository.FindByID(ctx, id)
	r.once.Do(r.afterRead)
	return a, err
}

func (r *racedAccounts) FindByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	a, err := r.AccountRepository.FindByIdentity(ctx, identity)
	r.once.Do(r.afterRead)
	return a, err
}

// raced builds auth, password and account usecases over f's stores whose first account
// read is followed by afterRead.
func (f *fixture) raced(afterRead func()) (*usecase.AuthUsecase, *usecase.PasswordUsecase, *usecase.AccountUsecase) {
	repo := &racedAccounts{AccountRepository: f.accounts, afterRead: afterRead}
	logger := discardLogger()
	tokens := usecase.NewTokenGenerator(nil)
	auth := usecase.NewAuthUsecase(repo, tokens, f.clock, testTTL, logger)
	password := usecase.NewPasswordUsecase(repo, auth, tokens, f.clock, logger)
	account := usecase.NewAccountUsecase(repo, f.logs, f.apps, f.profiles, f.email, tokens, f.clock, logger)
	return auth, password, account
}
