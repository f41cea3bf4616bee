package domain

import (
	"errors"
	"time"
)

const (
	PasswordResetTokenTTL = 24 * time.Hour
	EmailChangeTokenTTL   = 24 * time.Hour
)

// Token is an opaque random value with a fixed TTL measured from creation.
type Token struct {
	Value     string
	CreatedAt time.Time
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

func NewToken(value string, createdAt time.Time, ttl time.Duration) (Token, error) {
	if value == "" {
		return Token{}, errors.New("token value is required")
	}
	if ttl <= 0 {
		return Token{}, errors.New("token ttl must be positive")
	}
	return Token{
		Value:     value,
		CreatedAt: createdAt,
		ExpiresIn: ttl,
		ExpiresAt: createdAt.Add(ttl),
	}, nil
}

// ValidAt reports whether the token may still be used at now (now <= ExpiresAt).
func (t Token) ValidAt(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

// AuthToken is the bearer token proving a prior login. UpdatedAt moves on every extension.
type AuthToken struct {
	Token
	UpdatedAt time.Time
}

func NewAuthToken(value string, createdAt time.Time, ttl time.Duration) (AuthToken, error) {
	t, err := NewToken(value, createdAt, ttl)
	if err != nil {
		return AuthToken{}, err
	}
	return AuthToken{Token: t, UpdatedAt: createdAt}, nil
}

// EmailUpdateRequest holds a pending identity change awaiting confirmation.
type EmailUpdateRequest struct {
	Token Token
	Email string
}
