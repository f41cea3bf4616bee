package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

type ActivationState int

const (
	ActivationPending ActivationState = iota
	ActivationActive
)

func (s ActivationState) String() string {
	if s == ActivationActive {
		return "active"
	}
	return "pending"
}

// InactivityFlag records that a warning stage has been processed for an account.
type InactivityFlag string

const (
	FlagOneWeekNotice  InactivityFlag = "1-week-notice"
	FlagOneMonthNotice InactivityFlag = "1-month-notice"
)

// DeletionReason is recorded in the audit log when an account is removed.
type DeletionReason string

const (
	ReasonUserRequested DeletionReason = "user-initiated"
	ReasonExpired       DeletionReason = "expired"
	ReasonUnactivated   DeletionReason = "unactivated"
)

type Account struct {
	ID                  string
	Identity            string
	PasswordHash        string
	State               ActivationState
	ActivationToken     string
	CreatedAt           time.Time
	ActivatedAt         *time.Time
	LastLogin           *time.Time
	LastUpdated         time.Time
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	InactivityFlags     []InactivityFlag

	AuthToken          *AuthToken
	PasswordResetToken *Token
	EmailUpdateRequest *EmailUpdateRequest

	// DeletedAt is set on soft-deleted accounts; nothing but ID survives deletion.
	DeletedAt *time.Time
}

// NewAccount builds a pending account. identity must already be normalised.
func NewAccount(id, identity, passwordHash, activationToken string, now time.Time) (*Account, error) {
	switch {
	case id == "":
		return nil, errors.New("account id is required")
	case identity == "":
		return nil, errors.New("account identity is required")
	case passwordHash == "":
		return nil, errors.New("account password hash is required")
	}
	return &Account{
		ID:              id,
		Identity:        identity,
		PasswordHash:    passwordHash,
		State:           ActivationPending,
		ActivationToken: activationToken,
		CreatedAt:       now,
		LastUpdated:     now,
	}, nil
}

func (a *Account) IsActive() bool {
	return a.State == ActivationActive
}

func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

func (a *Account) HasFlag(flag InactivityFlag) bool {
	return slices.Contains(a.InactivityFlags, flag)
}

// NormalizeIdentity trims and lower-cases an identity (email address).
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// DeletionLog is the audit entry left behind when an account is deleted.
type DeletionLog struct {
	IdentityHash string
	Type         string
	Reason       DeletionReason
	LoggedAt     time.Time
}

const LogTypeAccountDeleted = "account-deleted"
