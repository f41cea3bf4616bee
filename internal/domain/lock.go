package domain

import (
	"errors"
	"time"
)

// LockRecord is a named, TTL-bound claim on a scheduled job.
type LockRecord struct {
	Name       string
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func NewLockRecord(name, owner string, acquiredAt time.Time, ttl time.Duration) (LockRecord, error) {
	switch {
	case name == "":
		return LockRecord{}, errors.New("lock name is required")
	case owner == "":
		return LockRecord{}, errors.New("lock owner is required")
	case ttl <= 0:
		return LockRecord{}, errors.New("lock ttl must be positive")
	}
	return LockRecord{
		Name:       name,
		Owner:      owner,
		AcquiredAt: acquiredAt,
		ExpiresAt:  acquiredAt.Add(ttl),
	}, nil
}

// Expired reports whether the record can be taken over at now.
func (l LockRecord) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
