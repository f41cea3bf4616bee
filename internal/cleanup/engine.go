// Package cleanup runs the inactivity cleanup pass: expired accounts are deleted, accounts
// approaching expiry are warned once per stage, and accounts never activated are removed
// after a day.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/notify"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"github.com/jonboulle/clockwork"
)

const (
	expiryMonths      = 9
	oneMonthMonths    = 8
	oneWeek           = 7 * 24 * time.Hour
	unactivatedMaxAge = 24 * time.Hour
)

const (
	stageExpired     = "expired"
	stageOneWeek     = "one-week"
	stageOneMonth    = "one-month"
	stageUnactivated = "unactivated"
)

type Notifier interface {
	Notify(ctx context.Context, n notify.Notice) error
}

// AccountDeleter performs the full business deletion of an account.
type AccountDeleter interface {
	Delete(ctx context.Context, accountID string, reason domain.DeletionReason) error
}

type Engine struct {
	accounts  repository.AccountRepository
	deleter   AccountDeleter
	notifier  Notifier
	publisher notify.Publisher
	clock     clockwork.Clock
	stack     string
	logger    *slog.Logger
}

func NewEngine(
	accounts repository.AccountRepository,
	deleter AccountDeleter,
	notifier Notifier,
	publisher notify.Publisher,
	clock clockwork.Clock,
	stack string,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		accounts:  accounts,
		deleter:   deleter,
		notifier:  notifier,
		publisher: publisher,
		clock:     clock,
		stack:     stack,
		logger:    logger.With("component", "cleanup"),
	}
}

// Windows are the last-login boundaries for one pass. The stages are disjoint:
// expired < NineMonths <= one-week < WeekBoundary <= one-month < EightMonths.
type Windows struct {
	NineMonths   time.Time
	WeekBoundary time.Time
	EightMonths  time.Time
	CreatedCut   time.Time
}

func WindowsAt(now time.Time) Windows {
	nine := now.AddDate(0, -expiryMonths, 0)
	return Windows{
		NineMonths:   nine,
		WeekBoundary: nine.Add(oneWeek),
		EightMonths:  now.AddDate(0, -oneMonthMonths, 0),
		CreatedCut:   now.Add(-unactivatedMaxAge),
	}
}

// DeletionDate is when an account that last logged in at lastLogin expires.
func DeletionDate(lastLogin time.Time) time.Time {
	return lastLogin.AddDate(0, expiryMonths, 0)
}

// Run performs one full pass and publishes its summary. Per-account failures are logged
// and counted; they never stop the pass.
func (e *Engine) Run(ctx context.Context) notify.Summary {
	start := e.clock.Now()
	w := WindowsAt(start)
	summary := notify.Summary{Stack: e.stack, StartedAt: start}

	e.logger.InfoContext(ctx, "cleanup started", "expiry_before", w.NineMonths)

	summary.Expired = e.runStage(ctx, stageExpired, &summary, func(fn func(*domain.Account) error) error {
		return e.accounts.ScanInactive(ctx, repository.InactiveQuery{LastLoginBefore: w.NineMonths}, fn)
	}, func(a *domain.Account) error {
		return e.deleter.Delete(ctx, a.ID, domain.ReasonExpired)
	})

	summary.OneWeek = e.runStage(ctx, stageOneWeek, &summary, func(fn func(*domain.Account) error) error {
		return e.accounts.ScanInactive(ctx, repository.InactiveQuery{
			LastLoginFrom:   &w.NineMonths,
			LastLoginBefore: w.WeekBoundary,
			ExcludeFlag:     domain.FlagOneWeekNotice,
		}, fn)
	}, func(a *domain.Account) error {
		return e.warn(ctx, a, domain.FlagOneWeekNotice)
	})

	summary.OneMonth = e.runStage(ctx, stageOneMonth, &summary, func(fn func(*domain.Account) error) error {
		return e.accounts.ScanInactive(ctx, repository.InactiveQuery{
			LastLoginFrom:   &w.WeekBoundary,
			LastLoginBefore: w.EightMonths,
			ExcludeFlag:     domain.FlagOneMonthNotice,
		}, fn)
	}, func(a *domain.Account) error {
		return e.warn(ctx, a, domain.FlagOneMonthNotice)
	})

	summary.Unactivated = e.runStage(ctx, stageUnactivated, &summary, func(fn func(*domain.Account) error) error {
		return e.accounts.ScanUnactivated(ctx, w.CreatedCut, fn)
	}, func(a *domain.Account) error {
		return e.deleter.Delete(ctx, a.ID, domain.ReasonUnactivated)
	})

	summary.FinishedAt = e.clock.Now()
	metrics.CleanupRunDuration.Observe(summary.FinishedAt.Sub(start).Seconds())
	metrics.CleanupLastRun.Set(float64(summary.FinishedAt.Unix()))

	if err := e.publisher.Publish(ctx, summary); err != nil {
		e.logger.ErrorContext(ctx, "unable to publish cleanup summary", "error", err)
	}
	e.logger.InfoContext(ctx, "cleanup finished",
		"expired", summary.Expired,
		"one_week", summary.OneWeek,
		"one_month", summary.OneMonth,
		"unactivated", summary.Unactivated,
		"failures", summary.Failures,
	)
	return summary
}

// runStage scans one population and applies act to each account, returning how many
// succeeded. A failing scan is logged and ends only this stage.
func (e *Engine) runStage(
	ctx context.Context,
	stage string,
	summary *notify.Summary,
	scan func(fn func(*domain.Account) error) error,
	act func(*domain.Account) error,
) int {
	done := 0
	err := scan(func(a *domain.Account) error {
		if err := act(a); err != nil {
			summary.Failures++
			metrics.CleanupAccountsTotal.WithLabelValues(stage, "failed").Inc()
			e.logFailure(ctx, stage, a, err)
			return nil
		}
		done++
		metrics.CleanupAccountsTotal.WithLabelValues(stage, "ok").Inc()
		return nil
	})
	if err != nil {
		summary.Failures++
		e.logger.ErrorContext(ctx, "cleanup stage aborted", "stage", stage, "error", err)
	}
	return done
}

// warn sends the notice and only then records the flag, so an undelivered notice is
// retried on the next pass.
func (e *Engine) warn(ctx context.Context, a *domain.Account, flag domain.InactivityFlag) error {
	if a.LastLogin == nil {
		return errors.New("account has no last login")
	}
	notice := notify.Notice{
		Type:     flag,
		Username: a.Identity,
		Date:     DeletionDate(*a.LastLogin),
	}
	if err := e.notifier.Notify(ctx, notice); err != nil {
		return err
	}
	return e.accounts.AddInactivityFlag(ctx, a.ID, flag)
}

func (e *Engine) logFailure(ctx context.Context, stage string, a *domain.Account, err error) {
	var de *notify.DeliveryError
	if errors.As(err, &de) && de.ClientSide() {
		e.logger.WarnContext(ctx, "unable to send account expiry notification",
			"stage", stage, "account_id", a.ID, "status", de.StatusCode, "error", err)
		return
	}
	if errors.Is(err, domain.ErrNotificationDeliveryFailed) {
		e.logger.ErrorContext(ctx, "unable to send account expiry notification",
			"stage", stage, "account_id", a.ID, "error", err)
		return
	}
	e.logger.ErrorContext(ctx, "cleanup action failed", "stage", stage, "account_id", a.ID, "error", err)
}
