package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	// TokenHeader carries the auth token; every authenticated request extends it.
	TokenHeader = "Token"
	// CheckedTokenHeader asks whether a token is still valid without extending it.
	CheckedTokenHeader = "CheckedToken"

	AccountIDKey = "accountID"

	errUnauthorized = "Unauthorized"
)

type tokenValidator interface {
	ValidateAuthToken(ctx context.Context, token string, extend bool) (string, error)
}

// Auth resolves the Token (or CheckedToken) header to an account and sets
// AccountIDKey in the gin context.
func Auth(validator tokenValidator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, extend := c.GetHeader(TokenHeader), true
		if token == "" {
			token, extend = c.GetHeader(CheckedTokenHeader), false
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		accountID, err := validator.ValidateAuthToken(c.Request.Context(), token, extend)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidToken) {
				logger.ErrorContext(c.Request.Context(), "validate auth token", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}
