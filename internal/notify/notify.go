// Package notify delivers account inactivity notices and cleanup run summaries.
package notify

import (
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

// Notice asks the front end to warn Username that the account goes on Date.
type Notice struct {
	Type     domain.InactivityFlag
	Username string
	Date     time.Time
}

// Summary counts what one cleanup pass did.
type Summary struct {
	Stack       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Expired     int
	OneWeek     int
	OneMonth    int
	Unactivated int
	Failures    int
}

const SummarySubject = "LPA Account Cleanup Notification"

func (s Summary) Message() string {
	return fmt.Sprintf(
		"Account cleanup on %s finished in %s.\nExpired accounts deleted: %d\nOne week notices sent: %d\nOne month notices sent: %d\nUnactivated accounts deleted: %d\nFailures: %d\n",
		s.Stack, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
		s.Expired, s.OneWeek, s.OneMonth, s.Unactivated, s.Failures,
	)
}

// DeliveryError is a rejected or failed notice. It matches
// domain.ErrNotificationDeliveryFailed under errors.Is.
type DeliveryError struct {
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notification rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("notification delivery: %v", e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrNotificationDeliveryFailed}
	}
	return []error{domain.ErrNotificationDeliveryFailed, e.Err}
}

// ClientSide reports a 4xx rejection: the callback refused this notice, the service
// itself is fine.
func (e *DeliveryError) ClientSide() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
