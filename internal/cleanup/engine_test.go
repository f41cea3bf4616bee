package cleanup_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/cleanup"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/memory"
	"github.com/ErlanBelekov/account-lifecycle/internal/notify"
	"github.com/jonboulle/clockwork"
)

// ---- fakes ----

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []notify.Notice
	failFor map[string]error
}

func (n *fakeNotifier) Notify(_ context.Context, notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[notice.Username]; err != nil {
		return err
	}
	n.sent = append(n.sent, notice)
	return nil
}

type deletion struct {
	id     string
	reason domain.DeletionReason
}

type fakeDeleter struct {
	accounts *memory.AccountRepository
	clock    clockwork.Clock
	deleted  []deletion
}

func (d *fakeDeleter) Delete(ctx context.Context, id string, reason domain.DeletionReason) error {
	a, err := d.accounts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.accounts.SoftDelete(ctx, id, a.LastUpdated, d.clock.Now()); err != nil {
		return err
	}
	d.deleted = append(d.deleted, deletion{id, reason})
	return nil
}

type fakePublisher struct {
	published []notify.Summary
}

func (p *fakePublisher) Publish(_ context.Context, s notify.Summary) error {
	p.published = append(p.published, s)
	return nil
}

// ---- helpers ----

var now = time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

type harness struct {
	clock     *clockwork.FakeClock
	accounts  *memory.AccountRepository
	notifier  *fakeNotifier
	deleter   *fakeDeleter
	publisher *fakePublisher
	engine    *cleanup.Engine
}

func newHarness() *harness {
	h := &harness{
		clock:     clockwork.NewFakeClockAt(now),
		accounts:  memory.NewAccountRepository(),
		notifier:  &fakeNotifier{failFor: map[string]error{}},
		publisher: &fakePublisher{},
	}
	h.deleter = &fakeDeleter{accounts: h.accounts, clock: h.clock}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.engine = cleanup.NewEngine(h.accounts, h.deleter, h.notifier, h.publisher, h.clock, "unit_test", logger)
	return h
}

func (h *harness) active(t *testing.T, id string, lastLogin time.Time) {
	t.Helper()
	a, err := domain.NewAccount(id, id+"@example.com", "hash", "", now.AddDate(-2, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	a.State = domain.ActivationActive
	a.LastLogin = &lastLogin
	if err := h.accounts.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) pending(t *testing.T, id string, created time.Time) {
	t.Helper()
	a, err := domain.NewAccount(id, id+"@example.com", "hash", "act-"+id, created)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.accounts.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) deletedReason(id string) domain.DeletionReason {
	for _, d := range h.deleter.deleted {
		if d.id == id {
			return d.reason
		}
	}
	return ""
}

// ---- tests ----

func TestRun_ClassifiesEachStage(t *testing.T) {
	h := newHarness()
	nine := now.AddDate(0, -9, 0)

	h.active(t, "expired", nine.AddDate(0, 0, -1))
	h.active(t, "week", nine.AddDate(0, 0, 3))
	h.active(t, "month", now.AddDate(0, -8, -3))
	h.active(t, "recent", now.AddDate(0, -1, 0))
	h.pending(t, "stale-pending", now.Add(-30*time.Hour))
	h.pending(t, "fresh-pending", now.Add(-10*time.Hour))

	summary := h.engine.Run(context.Background())

	if got := h.deletedReason("expired"); got != domain.ReasonExpired {
		t.Errorf("expired account reason = %q", got)
	}
	if got := h.deletedReason("stale-pending"); got != domain.ReasonUnactivated {
		t.Errorf("stale pending reason = %q", got)
	}
	if len(h.deleter.deleted) != 2 {
		t.Errorf("deleted = %+v", h.deleter.deleted)
	}

	if len(h.notifier.sent) != 2 {
		t.Fatalf("sent = %+v", h.notifier.sent)
	}
	byUser := map[string]notify.Notice{}
	for _, n := range h.notifier.sent {
		byUser[n.Username] = n
	}
	week := byUser["week@example.com"]
	if week.Type != domain.FlagOneWeekNotice || !week.Date.Equal(nine.AddDate(0, 0, 3).AddDate(0, 9, 0)) {
		t.Errorf("week notice = %+v", week)
	}
	month := byUser["month@example.com"]
	if month.Type != domain.FlagOneMonthNotice || !month.Date.Equal(now.AddDate(0, -8, -3).AddDate(0, 9, 0)) {
		t.Errorf("month notice = %+v", month)
	}

	a, _ := h.accounts.FindByID(context.Background(), "week")
	if !a.HasFlag(domain.FlagOneWeekNotice) {
		t.Errorf("week account not flagged: %v", a.InactivityFlags)
	}
	a, _ = h.accounts.FindByID(context.Background(), "month")
	if !a.HasFlag(domain.FlagOneMonthNotice) {
		t.Errorf("month account not flagged: %v", a.InactivityFlags)
	}

	if summary.Expired != 1 || summary.OneWeek != 1 || summary.OneMonth != 1 || summary.Unactivated != 1 || summary.Failures != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(h.publisher.published) != 1 || h.publisher.published[0].Stack != "unit_test" {
		t.Errorf("published = %+v", h.publisher.published)
	}
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	h := newHarness()
	nine := now.AddDate(0, -9, 0)
	h.active(t, "expired", nine.AddDate(0, 0, -1))
	h.active(t, "week", nine.AddDate(0, 0, 3))
	h.active(t, "month", now.AddDate(0, -8, -3))
	h.pending(t, "stale-pending", now.Add(-30*time.Hour))

	h.engine.Run(context.Background())
	sent, deleted := len(h.notifier.sent), len(h.deleter.deleted)

	second := h.engine.Run(context.Background())
	if len(h.notifier.sent) != sent {
		t.Errorf("second pass sent %d duplicate notices", len(h.notifier.sent)-sent)
	}
	if len(h.deleter.deleted) != deleted {
		t.Errorf("second pass deleted %d accounts again", len(h.deleter.deleted)-deleted)
	}
	if second.Expired+second.OneWeek+second.OneMonth+second.Unactivated != 0 {
		t.Errorf("second summary = %+v", second)
	}
	if len(h.publisher.published) != 2 {
		t.Errorf("summary not published on every pass")
	}
}

func TestRun_WindowBoundaries(t *testing.T) {
	h := newHarness()
	w := cleanup.WindowsAt(now)

	h.active(t, "at-nine", w.NineMonths)
	h.active(t, "at-week-boundary", w.WeekBoundary)
	h.active(t, "at-eight", w.EightMonths)

	h.engine.Run(context.Background())

	if len(h.deleter.deleted) != 0 {
		t.Errorf("deleted at boundary: %+v", h.deleter.deleted)
	}
	types := map[string]domain.InactivityFlag{}
	for _, n := range h.notifier.sent {
		types[n.Username] = n.Type
	}
	if types["at-nine@example.com"] != domain.FlagOneWeekNotice {
		t.Errorf("exactly nine months: %q", types["at-nine@example.com"])
	}
	if types["at-week-boundary@example.com"] != domain.FlagOneMonthNotice {
		t.Errorf("week boundary: %q", types["at-week-boundary@example.com"])
	}
	if _, ok := types["at-eight@example.com"]; ok {
		t.Errorf("exactly eight months should not be warned yet")
	}
}

func TestRun_FailedNoticeIsRetriedAndDoesNotStopPass(t *testing.T) {
	h := newHarness()
	nine := now.AddDate(0, -9, 0)
	h.active(t, "a", nine.AddDate(0, 0, 2))
	h.active(t, "b", nine.AddDate(0, 0, 4))
	h.active(t, "expired", nine.AddDate(0, 0, -10))
	h.notifier.failFor["a@example.com"] = &notify.DeliveryError{StatusCode: 400}

	summary := h.engine.Run(context.Background())

	if summary.Failures != 1 || summary.OneWeek != 1 || summary.Expired != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	a, _ := h.accounts.FindByID(context.Background(), "a")
	if a.HasFlag(domain.FlagOneWeekNotice) {
		t.Fatal("flag set although the notice failed")
	}

	delete(h.notifier.failFor, "a@example.com")
	h.engine.Run(context.Background())
	a, _ = h.accounts.FindByID(context.Background(), "a")
	if !a.HasFlag(domain.FlagOneWeekNotice) {
		t.Fatal("notice not retried on the next pass")
	}
}

func TestRun_LoginClearsFlagsAndRestartsClock(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.active(t, "back", now.AddDate(0, -9, 2))

	h.engine.Run(ctx)
	a, _ := h.accounts.FindByID(ctx, "back")
	if err := h.accounts.RecordLogin(ctx, "back", a.LastUpdated, now); err != nil {
		t.Fatal(err)
	}
	a, _ = h.accounts.FindByID(ctx, "back")
	if len(a.InactivityFlags) != 0 {
		t.Fatalf("flags survived login: %v", a.InactivityFlags)
	}

	sent := len(h.notifier.sent)
	h.engine.Run(ctx)
	if len(h.notifier.sent) != sent {
		t.Error("recently active account warned again")
	}
}

func TestRun_NothingToDoStillPublishes(t *testing.T) {
	h := newHarness()
	summary := h.engine.Run(context.Background())
	if len(h.publisher.published) != 1 {
		t.Fatalf("published = %d", len(h.publisher.published))
	}
	if summary.Failures != 0 {
		t.Errorf("summary = %+v", summary)
	}
}
