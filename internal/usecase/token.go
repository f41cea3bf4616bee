package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

const (
	authTokenBytes   = 32
	secretTokenBytes = 16
)

// TokenGenerator turns bytes from a cryptographic source into compact base62 strings.
// A failing source aborts generation with domain.ErrRandomnessSourceWeak; it never falls
// back to a weaker source.
type TokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator uses crypto/rand when source is nil.
func NewTokenGenerator(source io.Reader) *TokenGenerator {
	if source == nil {
		source = rand.Reader
	}
	return &TokenGenerator{source: source}
}

// Generate returns n random bytes encoded in base62.
func (g *TokenGenerator) Generate(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(g.source, b); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRandomnessSourceWeak, err)
	}
	return new(big.Int).SetBytes(b).Text(62), nil
}

// Digits returns a random decimal number with exactly n digits (no leading zero).
func (g *TokenGenerator) Digits(n int) (string, error) {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)
	v, err := rand.Int(g.source, span)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRandomnessSourceWeak, err)
	}
	return v.Add(v, lo).String(), nil
}
