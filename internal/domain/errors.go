package domain

import "errors"

var (
	// ErrInvalidToken covers absent, wrong and expired tokens alike.
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUsernameUnchanged  = errors.New("username is the same as the current one")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid user credentials")
	ErrAccountNotActive   = errors.New("account not activated")
	ErrInvalidPassword    = errors.New("password does not meet requirements")

	// ErrVersionConflict is returned when a conditional write did not match exactly one
	// document: the stored version marker moved on since the caller read it.
	ErrVersionConflict = errors.New("document was modified by another request")

	ErrDocumentNotFound    = errors.New("document not found")
	ErrDuplicateDocument   = errors.New("document already exists")
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationLocked   = errors.New("application is locked")

	ErrLockNotAcquired            = errors.New("cron lock held by another node")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
	ErrRandomnessSourceWeak       = errors.New("unable to generate a strong token")
)
